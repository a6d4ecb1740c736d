// SPDX-License-Identifier: MIT

package domains

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// templateFile is the YAML overlay an operator can supply to teach the
// proxy about additional CDNs without a rebuild:
//
//	templates:
//	  - pattern: "*.example-cdn.com"
//	    deriveOrigin: true
//	    headers:
//	      X-Playback-Token: "static"
type templateFile struct {
	Templates []Template `yaml:"templates"`
}

// LoadFile prepends templates from a YAML file to the registry, ahead of
// the built-ins so operator entries win. The catch-all stays last.
func (r *Registry) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read domain templates: %w", err)
	}

	var f templateFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parse domain templates: %w", err)
	}

	loaded := compile(f.Templates, r.logger)
	r.templates = append(loaded, r.templates...)
	r.headerCache.Range(func(k, _ any) bool {
		r.headerCache.Delete(k)
		return true
	})

	r.logger.Info().
		Int("templates", len(loaded)).
		Str("path", path).
		Msg("loaded domain template overlay")
	return nil
}
