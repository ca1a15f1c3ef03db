package models

import "strings"

// CommandType enumerates supported chat command categories.
type CommandType string

const (
	CommandStatus  CommandType = "estado"
	CommandWater   CommandType = "regar"
	CommandUsage   CommandType = "agua"
	CommandHelp    CommandType = "ayuda"
	CommandUnknown CommandType = "unknown"
)

var commandAliases = map[string]CommandType{
	"estado": CommandStatus,
	"status": CommandStatus,
	"regar":  CommandWater,
	"water":  CommandWater,
	"agua":   CommandUsage,
	"usage":  CommandUsage,
	"ayuda":  CommandHelp,
	"help":   CommandHelp,
}

// Command represents a parsed instruction extracted from WhatsApp text.
type Command struct {
	Type CommandType
	Raw  string
	Args []string
}

// Target joins the command arguments, which is how parcel names with spaces are passed.
func (c Command) Target() string {
	return strings.Join(c.Args, " ")
}

// ParseCommand derives a Command instance from free-form text messages.
// Only the command word is case-folded; arguments keep their original spelling.
func ParseCommand(message string) Command {
	tokens := strings.Fields(strings.TrimSpace(message))
	cmd := Command{Type: CommandUnknown, Raw: message}

	if len(tokens) == 0 {
		return cmd
	}

	head := strings.TrimPrefix(strings.ToLower(tokens[0]), "/")
	if t, ok := commandAliases[head]; ok {
		cmd.Type = t
	}

	if len(tokens) > 1 {
		cmd.Args = tokens[1:]
	}

	return cmd
}
