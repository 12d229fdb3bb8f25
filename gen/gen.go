// Package gen is the output stage: it builds documents and writes them to disk
// in the requested formats. Documents build in parallel; each instance name
// yields one file per output type.
package gen

import (
	"fmt"
	"os"
	"path"
	"strings"

	gojson "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"sigs.k8s.io/yaml"
)

// defaultParallelism bounds concurrent document builds when the config leaves
// Parallelism unset.
const defaultParallelism = 4

type typeWriter func(config *Config, instance string, document interface{}) error

// Gen writes compiled documents in the configured output formats.
type Gen struct {
	json          func(data interface{}) ([]byte, error)
	jsonIndent    func(data interface{}) ([]byte, error)
	jsonToYAML    func(data []byte) ([]byte, error)
	outputTypeMap map[string]typeWriter
	log           zerolog.Logger
}

// New creates a Gen logging to stderr.
func New() *Gen {
	g := &Gen{
		json: gojson.Marshal,
		jsonIndent: func(data interface{}) ([]byte, error) {
			return gojson.MarshalIndent(data, "", "    ")
		},
		jsonToYAML: yaml.JSONToYAML,
		log:        zerolog.New(os.Stderr).With().Timestamp().Logger(),
	}

	g.outputTypeMap = map[string]typeWriter{
		"json": g.writeJSON,
		"yaml": g.writeYAML,
		"yml":  g.writeYAML,
	}

	return g
}

// SetLogger replaces the progress logger.
func (g *Gen) SetLogger(log zerolog.Logger) {
	g.log = log
}

// Config presents Gen configurations.
type Config struct {
	// OutputDir is the directory all files are written into.
	OutputDir string

	// OutputTypes lists the formats to emit per document: json, yaml, yml.
	OutputTypes []string

	// Parallelism bounds concurrent document builds; 0 means the default.
	Parallelism int
}

// Document is one named build target. Build is called once per Gen.Build run,
// from a worker goroutine.
type Document struct {
	// Instance names the document; files are written as <instance>.<type>.
	Instance string

	// Build produces the marshalable document.
	Build func() (interface{}, error)
}

// Build builds every document and writes each in every configured output type.
// The first failure cancels the remaining work.
func (g *Gen) Build(config *Config, documents []Document) error {
	if len(config.OutputTypes) == 0 {
		return fmt.Errorf("no output types configured")
	}

	types := make([]string, 0, len(config.OutputTypes))
	for _, outputType := range config.OutputTypes {
		outputType = strings.ToLower(strings.TrimSpace(outputType))
		if _, ok := g.outputTypeMap[outputType]; !ok {
			return fmt.Errorf("output type %q not supported", outputType)
		}
		types = append(types, outputType)
	}

	seen := make(map[string]bool, len(documents))
	for _, document := range documents {
		if document.Instance == "" {
			return fmt.Errorf("document with empty instance name")
		}
		if seen[document.Instance] {
			return fmt.Errorf("duplicate document instance %q", document.Instance)
		}
		seen[document.Instance] = true
	}

	if err := os.MkdirAll(config.OutputDir, os.ModePerm); err != nil {
		return err
	}

	parallelism := config.Parallelism
	if parallelism <= 0 {
		parallelism = defaultParallelism
	}

	var group errgroup.Group
	group.SetLimit(parallelism)
	for _, document := range documents {
		document := document
		group.Go(func() error {
			built, err := document.Build()
			if err != nil {
				return fmt.Errorf("build %s: %w", document.Instance, err)
			}
			for _, outputType := range types {
				if err := g.outputTypeMap[outputType](config, document.Instance, built); err != nil {
					return fmt.Errorf("write %s.%s: %w", document.Instance, outputType, err)
				}
			}
			return nil
		})
	}
	return group.Wait()
}

func (g *Gen) writeJSON(config *Config, instance string, document interface{}) error {
	b, err := g.jsonIndent(document)
	if err != nil {
		return err
	}

	file := path.Join(config.OutputDir, instance+".json")
	if err := g.writeFile(b, file); err != nil {
		return err
	}

	g.log.Info().Str("file", file).Msg("wrote document")
	return nil
}

func (g *Gen) writeYAML(config *Config, instance string, document interface{}) error {
	b, err := g.json(document)
	if err != nil {
		return err
	}

	y, err := g.jsonToYAML(b)
	if err != nil {
		return fmt.Errorf("cannot convert json to yaml: %w", err)
	}

	file := path.Join(config.OutputDir, instance+".yaml")
	if err := g.writeFile(y, file); err != nil {
		return err
	}

	g.log.Info().Str("file", file).Msg("wrote document")
	return nil
}

func (g *Gen) writeFile(b []byte, file string) error {
	f, err := os.Create(file)
	if err != nil {
		return err
	}

	defer f.Close()

	_, err = f.Write(b)

	return err
}
