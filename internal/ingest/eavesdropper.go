// Package ingest speaks just enough of the Memcached text protocol to sit
// behind an mcrouter eavesdropping route and turn observed GET/SET traffic
// into Profiler.Feed calls, without actually serving reads. DELETE lines are
// parsed and answered but not fed.
package ingest

import (
	"bufio"
	"bytes"
	"errors"
	"net"
	"strconv"
	"strings"

	"github.com/inexplicable/slabmrc"
	"github.com/inexplicable/slabmrc/internal/classify"
)

// Command is the access category a wire-protocol line maps to. A slab
// pressure profiler never cares which specific verb produced a fetch or a
// store, only that one happened, so this collapses the dozen-plus Memcached
// verbs into the five categories anything downstream ever branches on.
type Command int

const (
	Fetch Command = iota
	Store
	Delete
	Quit
	Other
)

// CRLF is the line delimiter the wire protocol uses.
const CRLF = "\r\n"

var (
	End         = []byte("END\r\n")
	NotStored   = []byte("NOT_STORED\r\n")
	NotFound    = []byte("NOT_FOUND\r\n")
	ClientError = []byte("CLIENT_ERROR <ignore eavesdropping error>\r\n")
	ErrParse    = errors.New("command_parse_error")
	ErrQuit     = errors.New("quit")
)

func scanCRLF(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, CRLF); i >= 0 {
		return i + 2, data[0:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// EavesdroppingServer handles one parsed line and returns the canned
// response to write back, since a real cache server sits downstream of the
// eavesdropper and already answered the client.
type EavesdroppingServer interface {
	OnCommand(command Command, args []string, scanner *bufio.Scanner) ([]byte, error)
}

// Serve reads lines off conn until the client disconnects or quits,
// dispatching each to server and writing back its canned response.
func Serve(conn net.Conn, server EavesdroppingServer) {
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	scanner.Split(scanCRLF)

	for scanner.Scan() {
		if cmd, args, err := parseCommand(scanner.Text()); err == nil {
			if resp, err := server.OnCommand(cmd, args, scanner); err == nil {
				if _, err := conn.Write(resp); err == nil {
					continue
				}
			}
		}
		break
	}
}

// parseCommand classifies a wire line into one of the five categories
// OnCommand branches on. gat/gats carry a leading exptime argument ahead of
// the key list, which is why they skip one more section than get/gets; the
// profiler only ever sees the resulting key list, never the exptime itself.
func parseCommand(line string) (Command, []string, error) {
	sections := strings.Split(line, " ")
	if len(sections) < 1 {
		return Other, nil, ErrParse
	}

	switch sections[0] {
	case "get", "gets":
		return Fetch, sections[1:], nil
	case "gat", "gats":
		return Fetch, sections[2:], nil
	case "set", "add", "replace", "cas":
		return Store, sections[1:], nil
	case "delete":
		return Delete, sections[1:], nil
	case "quit":
		return Quit, nil, nil
	default:
		return Other, nil, nil
	}
}

// AbstractEavesdropper dispatches OnCommand to the three access hooks a
// profiling eavesdropper cares about, answering every line with the canned
// response an mcrouter eavesdropping route expects.
type AbstractEavesdropper struct {
	OnFetch  func(keys ...string)
	OnStore  func(key string, bytes int)
	OnDelete func(key string)
}

// OnCommand implements EavesdroppingServer.
func (e *AbstractEavesdropper) OnCommand(command Command, args []string, scanner *bufio.Scanner) ([]byte, error) {
	switch command {
	case Fetch:
		e.OnFetch(args...)
		return End, nil
	case Store:
		if key, bytes, err := parseStore(args); err == nil {
			e.OnStore(key, bytes)
			skipN(scanner, bytes+2)
		}
		return NotStored, nil
	case Delete:
		if len(args) > 0 {
			e.OnDelete(args[0])
		}
		return NotFound, nil
	case Quit:
		return nil, ErrQuit
	default:
		return ClientError, nil
	}
}

// ProfilingEavesdropper turns eavesdropped GET and SET traffic into
// slabmrc.Profiler.Feed calls, classifying each key into a size-class via a
// classify.PrefixClassifier. DELETE is not an access and is ignored.
type ProfilingEavesdropper struct {
	AbstractEavesdropper
	profiler   *slabmrc.Profiler
	classifier *classify.PrefixClassifier
}

// NewProfilingEavesdropper wires profiler and classifier behind the
// Memcached eavesdropping protocol.
func NewProfilingEavesdropper(profiler *slabmrc.Profiler, classifier *classify.PrefixClassifier) *ProfilingEavesdropper {
	eavesdropper := &ProfilingEavesdropper{
		profiler:   profiler,
		classifier: classifier,
	}
	eavesdropper.AbstractEavesdropper = AbstractEavesdropper{
		OnFetch: func(keys ...string) {
			for _, key := range keys {
				eavesdropper.profiler.Feed(key, eavesdropper.classifier.ClassOf(key))
			}
		},
		OnStore: func(key string, bytes int) {
			eavesdropper.profiler.Feed(key, eavesdropper.classifier.ClassOf(key))
		},
		OnDelete: func(key string) {},
	}
	return eavesdropper
}

func skipN(scanner *bufio.Scanner, n int) error {
	for scanner.Scan() {
		scanned := len(scanner.Bytes()) + 2
		n -= scanned
		if n < 0 {
			return ErrParse
		}
		if n == 0 {
			return nil
		}
	}
	if scanner.Err() != nil {
		return scanner.Err()
	}
	return ErrParse
}

// parseStore reads only the key and payload length out of a store command's
// argument line. The profiler has no notion of expiry, so unlike a real
// cache server this never resolves the trailing exptime argument at all.
func parseStore(args []string) (string, int, error) {
	if len(args) < 4 {
		return "", 0, ErrParse
	}
	bytes, err := strconv.Atoi(strings.TrimSpace(args[3]))
	if err != nil {
		return "", 0, ErrParse
	}
	return args[0], bytes, nil
}
