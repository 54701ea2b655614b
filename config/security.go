package config

import (
	"errors"
	"fmt"
	"os"

	errs "github.com/Gondolav/inventory-connector/errors"
)

const (
	maxConfigSize = 10 << 20 // 10MB max config file size
	maxJSONDepth  = 100      // Maximum JSON nesting depth
)

// safeReadFile reads a tenant document, refusing anything that is not a
// regular file or exceeds maxConfigSize. A missing file is reported as
// ErrConfigNotFound, every other failure as ErrConfigUnreadable.
func safeReadFile(path string) ([]byte, error) {
	if path == "" {
		return nil, errs.Join(errs.ErrConfigNotFound, errors.New("empty config path"))
	}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, errs.Join(errs.ErrConfigNotFound, err)
		}
		return nil, errs.Join(errs.ErrConfigUnreadable, err)
	}
	if !info.Mode().IsRegular() {
		return nil, errs.Join(errs.ErrConfigUnreadable, fmt.Errorf("not a regular file: %s", path))
	}
	if info.Size() > maxConfigSize {
		return nil, errs.Join(errs.ErrConfigUnreadable,
			fmt.Errorf("config file too large: %d bytes > %d", info.Size(), maxConfigSize))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Join(errs.ErrConfigUnreadable, err)
	}
	return data, nil
}

// validateJSONDepth rejects documents nested deeper than maxJSONDepth
func validateJSONDepth(data []byte) error {
	depth := 0
	inString := false
	escaped := false

	for _, b := range data {
		if escaped {
			escaped = false
			continue
		}
		if inString {
			switch b {
			case '\\':
				escaped = true
			case '"':
				inString = false
			}
			continue
		}

		switch b {
		case '"':
			inString = true
		case '{', '[':
			depth++
			if depth > maxJSONDepth {
				return fmt.Errorf("JSON nesting too deep: %d > %d", depth, maxJSONDepth)
			}
		case '}', ']':
			depth--
			if depth < 0 {
				return errors.New("malformed JSON: unbalanced brackets")
			}
		}
	}

	if depth != 0 {
		return fmt.Errorf("malformed JSON: unclosed brackets (depth=%d)", depth)
	}
	return nil
}
