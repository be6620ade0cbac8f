package terminal

type commandGroup uint8

const (
	otherCmds commandGroup = iota
	symbolCmds
	dataCmds
)

type commandGroupDescription struct {
	description string
	group       commandGroup
}

var commandGroupDescriptions = []commandGroupDescription{
	{"Inspecting types and symbols", symbolCmds},
	{"Viewing variables and memory", dataCmds},
	{"Other commands", otherCmds},
}
