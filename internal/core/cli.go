package core

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

type UsageError struct {
	Arg   string
	Cause string
}

func (e *UsageError) Error() string {
	return fmt.Sprintf("invalid argument %q: %s", e.Arg, e.Cause)
}

type CommandKind int

const (
	CommandList CommandKind = iota
	CommandUpload
	CommandDelete
	CommandStats
	CommandDownload
)

type Command struct {
	Kind  CommandKind
	Query string
	Name  string
	Path  string
	ID    string
	Dest  string
}

// Usage is printed when the arguments cannot be parsed.
const Usage = `usage:
  surat list [query]
  surat upload <nama> <file>
  surat delete <id>
  surat stats <id>
  surat download <id> [dir]`

func ParseArgs(args []string) (*Command, error) {
	if len(args) == 0 {
		return nil, &UsageError{Arg: "<command>", Cause: "no command provided"}
	}

	verb, rest := args[0], args[1:]
	switch verb {
	case "list", "ls":
		return &Command{Kind: CommandList, Query: strings.Join(rest, " ")}, nil

	case "upload":
		if len(rest) != 2 {
			return nil, &UsageError{Arg: verb, Cause: "expected <nama> <file>"}
		}
		p := filepath.Clean(rest[1])
		info, err := os.Stat(p)
		if err != nil {
			return nil, &UsageError{Arg: rest[1], Cause: "not found or not accessible"}
		}
		if info.IsDir() {
			return nil, &UsageError{Arg: rest[1], Cause: "is a directory"}
		}
		return &Command{Kind: CommandUpload, Name: rest[0], Path: p}, nil

	case "delete", "rm":
		id, err := singleID(verb, rest)
		if err != nil {
			return nil, err
		}
		return &Command{Kind: CommandDelete, ID: id}, nil

	case "stats":
		id, err := singleID(verb, rest)
		if err != nil {
			return nil, err
		}
		return &Command{Kind: CommandStats, ID: id}, nil

	case "download":
		if len(rest) < 1 || len(rest) > 2 {
			return nil, &UsageError{Arg: verb, Cause: "expected <id> [dir]"}
		}
		dest := "."
		if len(rest) == 2 {
			dest = filepath.Clean(rest[1])
			info, err := os.Stat(dest)
			if err != nil || !info.IsDir() {
				return nil, &UsageError{Arg: rest[1], Cause: "not an accessible directory"}
			}
		}
		return &Command{Kind: CommandDownload, ID: rest[0], Dest: dest}, nil
	}

	return nil, &UsageError{Arg: verb, Cause: "unknown command"}
}

func singleID(verb string, rest []string) (string, error) {
	if len(rest) != 1 || strings.TrimSpace(rest[0]) == "" {
		return "", &UsageError{Arg: verb, Cause: "expected <id>"}
	}
	return rest[0], nil
}
