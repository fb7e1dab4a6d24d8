// Package sandboxcfg loads the server's (real, alias) sandbox prefix
// table from an INI file, grounded in gocanopen's object-dictionary EDS
// loader (od.go's ParseEDS: gopkg.in/ini.v1, one section per entry,
// named keys read via Section.Key), generalized from object-dictionary
// entries to sandbox prefixes.
package sandboxcfg

import (
	"fmt"

	"gopkg.in/ini.v1"

	"github.com/iluksbr/filerelay/internal/fsadapter"
)

// Each section names one sandbox prefix. Section name is a free-form
// label (for operator readability in the file); the "real" key is
// required, "alias" is optional. An absent alias is returned as an empty
// Alias; fsadapter.NewSandbox then treats it as equal to Real.
const (
	keyReal  = "real"
	keyAlias = "alias"
)

// Load parses path into an ordered list of sandbox prefixes, in
// section order.
func Load(path string) ([]fsadapter.Prefix, error) {
	file, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("sandboxcfg: %w", err)
	}
	return FromFile(file)
}

// FromFile builds the prefix list from an already-loaded ini.File,
// split out from Load so callers that already hold a parsed file (or
// build one in-memory for tests) can reuse the conversion.
func FromFile(file *ini.File) ([]fsadapter.Prefix, error) {
	sections := file.Sections()
	prefixes := make([]fsadapter.Prefix, 0, len(sections))
	for _, sec := range sections {
		if sec.Name() == ini.DefaultSection {
			continue
		}
		real := sec.Key(keyReal).String()
		if real == "" {
			return nil, fmt.Errorf("sandboxcfg: section %q missing %q key", sec.Name(), keyReal)
		}
		prefixes = append(prefixes, fsadapter.Prefix{
			Real:  real,
			Alias: sec.Key(keyAlias).String(),
		})
	}
	return prefixes, nil
}
