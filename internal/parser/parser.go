package parser

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/conorfennell/revisedeck/internal/capture"
)

const (
	subjectPrefix   = "S:"
	topicPrefix     = "T:"
	triggerPrefix   = "L:"
	yearsPrefix     = "Y:"
	highYieldPrefix = "H:"
)

type state int

const (
	seeking state = iota
	readingTopic
	readingTrigger
)

// ParseFile reads a file from the given path and extracts all capture blocks.
func ParseFile(path string) ([]capture.Input, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return Parse(file)
}

// Parse reads from an io.Reader and extracts all capture blocks.
//
// A block starts at a T: line. S:, Y: and H: are single-line fields; T: and
// L: continue onto following unprefixed lines. A line of "---" ends a block.
// Blocks without a topic are dropped.
func Parse(r io.Reader) ([]capture.Input, error) {
	scanner := bufio.NewScanner(r)
	var inputs []capture.Input
	var current capture.Input
	var block []string
	currentState := seeking

	flushBlock := func() {
		if len(block) == 0 {
			return
		}
		content := strings.TrimSpace(strings.Join(block, "\n"))
		switch currentState {
		case readingTopic:
			current.Topic = content
		case readingTrigger:
			current.Trigger = content
		}
		block = nil
	}

	finishInput := func() {
		flushBlock()
		if current.Topic != "" {
			inputs = append(inputs, current)
		}
		current = capture.Input{}
		currentState = seeking
	}

	for scanner.Scan() {
		line := scanner.Text()

		if strings.TrimSpace(line) == "---" {
			finishInput()
			continue
		}

		prefix, value, ok := splitPrefix(line)
		if !ok {
			if currentState != seeking {
				block = append(block, line)
			}
			continue
		}

		flushBlock()
		switch prefix {
		case topicPrefix:
			if current.Topic != "" { // A new topic always starts a new block
				finishInput()
			}
			currentState = readingTopic
			block = append(block, value)
		case triggerPrefix:
			currentState = readingTrigger
			block = append(block, value)
		case subjectPrefix:
			current.Subject = strings.TrimSpace(value)
			currentState = seeking
		case yearsPrefix:
			current.PYQYears = strings.TrimSpace(value)
			currentState = seeking
		case highYieldPrefix:
			current.HighYield = parseFlag(value)
			currentState = seeking
		}
	}

	finishInput() // Finish the very last block in the file

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return inputs, nil
}

func splitPrefix(line string) (string, string, bool) {
	for _, prefix := range []string{subjectPrefix, topicPrefix, triggerPrefix, yearsPrefix, highYieldPrefix} {
		if strings.HasPrefix(line, prefix) {
			value := line[len(prefix):]
			value = strings.TrimPrefix(value, " ")
			return prefix, value, true
		}
	}
	return "", "", false
}

func parseFlag(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "y", "yes", "true", "1", "x":
		return true
	default:
		return false
	}
}
