package cards

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

const (
	promptsFile = "prompts.json"
	answersFile = "answers.json"
)

var ErrInvalidCatalog = errors.New("invalid card catalog")

//go:embed data/prompts.json data/answers.json
var embedded embed.FS

// Entry is one record of the content catalog.
type Entry struct {
	Text string `json:"text"`
}

type Catalog struct {
	Prompts []Entry
	Answers []Entry
}

// Validate rejects empty lists and entries without text.
func (c Catalog) Validate() error {
	if len(c.Prompts) == 0 {
		return fmt.Errorf("%w: no prompt cards", ErrInvalidCatalog)
	}
	if len(c.Answers) == 0 {
		return fmt.Errorf("%w: no answer cards", ErrInvalidCatalog)
	}
	for i, e := range c.Prompts {
		if strings.TrimSpace(e.Text) == "" {
			return fmt.Errorf("%w: prompt card %d has no text", ErrInvalidCatalog, i)
		}
	}
	for i, e := range c.Answers {
		if strings.TrimSpace(e.Text) == "" {
			return fmt.Errorf("%w: answer card %d has no text", ErrInvalidCatalog, i)
		}
	}
	return nil
}

// Provider supplies the catalog used to seed a new session.
type Provider interface {
	Load(ctx context.Context) (Catalog, error)
}

// FSProvider reads prompts.json and answers.json from a file system.
type FSProvider struct {
	FS fs.FS
}

// Dir returns a provider reading the catalog files from dir.
func Dir(dir string) *FSProvider {
	return &FSProvider{FS: os.DirFS(dir)}
}

// Embedded returns a provider for the catalog compiled into the binary.
func Embedded() *FSProvider {
	sub, err := fs.Sub(embedded, "data")
	if err != nil {
		panic(err)
	}
	return &FSProvider{FS: sub}
}

func (p *FSProvider) Load(ctx context.Context) (Catalog, error) {
	if err := ctx.Err(); err != nil {
		return Catalog{}, err
	}
	prompts, err := readEntries(p.FS, promptsFile)
	if err != nil {
		return Catalog{}, err
	}
	answers, err := readEntries(p.FS, answersFile)
	if err != nil {
		return Catalog{}, err
	}
	c := Catalog{Prompts: prompts, Answers: answers}
	if err := c.Validate(); err != nil {
		return Catalog{}, err
	}
	return c, nil
}

func readEntries(fsys fs.FS, name string) ([]Entry, error) {
	b, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	var entries []Entry
	if err := json.Unmarshal(b, &entries); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidCatalog, name, err)
	}
	return entries, nil
}
