package configfile

import (
	"fmt"
	"strings"
)

// Format is the file format of a configuration file.
type Format int

const (
	FormatJSON Format = iota
	FormatYAML
	FormatProperties
	FormatTOML
)

var formatNames = []string{"json", "yaml", "properties", "toml"}

func (f Format) String() string {
	if f < 0 || int(f) >= len(formatNames) {
		return fmt.Sprintf("Format(%d)", int(f))
	}
	return formatNames[f]
}

// ParseFormat maps a format name to a Format.
func ParseFormat(name string) (Format, error) {
	for i, n := range formatNames {
		if n == name {
			return Format(i), nil
		}
	}
	return 0, &ArgumentError{Message: fmt.Sprintf("Format '%s' is invalid. Allowed values are: %s", name, strings.Join(formatNames, ", "))}
}
