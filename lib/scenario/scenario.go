// Package scenario holds the catalog of published screw-driving
// experiment datasets and resolves user-supplied identifiers to one of
// them. The catalog ships embedded: the published records are fixed, so
// their metadata is data, not deployment config.
package scenario

import (
	"embed"
	"errors"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed configs/*.yml
var configFS embed.FS

var ErrUnknownScenario = errors.New("unknown scenario")

// ErrUnpublished marks scenarios that exist in the catalog but have no
// published archive yet.
var ErrUnpublished = errors.New("scenario is not published yet")

type Names struct {
	Short string `yaml:"short"`
	Long  string `yaml:"long"`
	Full  string `yaml:"full"`
}

type Class struct {
	Id          int    `yaml:"id"`
	Name        string `yaml:"name"`
	Count       int    `yaml:"count"`
	Condition   string `yaml:"condition"`
	Description string `yaml:"description"`
}

type Data struct {
	RecordId    string `yaml:"record_id"`
	FileName    string `yaml:"file_name"`
	Md5Checksum string `yaml:"md5_checksum"`
}

type Metadata struct {
	Title   string `yaml:"title"`
	License string `yaml:"license"`
	Doi     string `yaml:"doi"`
	Version string `yaml:"version"`
}

type Scenario struct {
	Names    Names    `yaml:"names"`
	Classes  []Class  `yaml:"classes"`
	Data     Data     `yaml:"data"`
	Metadata Metadata `yaml:"metadata"`
}

// FullName returns the combined identifier, e.g. "s01_thread-degradation".
// It doubles as the extraction directory name.
func (s *Scenario) FullName() string {
	return fmt.Sprintf("%s_%s", s.Names.Short, s.Names.Full)
}

func (s *Scenario) DownloadUrl() string {
	return fmt.Sprintf(
		"https://zenodo.org/records/%s/files/%s?download=1",
		s.Data.RecordId, s.Data.FileName,
	)
}

func (s *Scenario) Published() bool {
	return s.Data.RecordId != ""
}

func (s *Scenario) TotalObservations() int {
	total := 0
	for _, c := range s.Classes {
		total += c.Count
	}
	return total
}

func (s *Scenario) ClassIds() []int {
	ids := make([]int, len(s.Classes))
	for i, c := range s.Classes {
		ids[i] = c.Id
	}
	return ids
}

var catalog []*Scenario
var byToken map[string]*Scenario

func init() {
	entries, err := configFS.ReadDir("configs")
	if err != nil {
		panic(err)
	}

	byToken = map[string]*Scenario{}
	for _, entry := range entries {
		contents, err := configFS.ReadFile("configs/" + entry.Name())
		if err != nil {
			panic(err)
		}

		s := &Scenario{}
		err = yaml.Unmarshal(contents, s)
		if err != nil {
			panic(fmt.Errorf("parse %s: %w", entry.Name(), err))
		}

		catalog = append(catalog, s)
		byToken[s.Names.Short] = s
		byToken[s.Names.Full] = s
		byToken[s.FullName()] = s
	}

	sort.Slice(catalog, func(i, j int) bool {
		return catalog[i].Names.Short < catalog[j].Names.Short
	})
}

// All returns the catalog ordered by short id, unpublished scenarios
// included.
func All() []*Scenario {
	return catalog
}

// Resolve maps a short id ("s01"), a full name ("thread-degradation") or a
// combined id ("s01_thread-degradation") to its scenario,
// case-insensitively. Every alias yields the same *Scenario.
func Resolve(token string) (*Scenario, error) {
	s, ok := byToken[strings.ToLower(strings.TrimSpace(token))]
	if !ok {
		return nil, fmt.Errorf(
			"%w: %q, valid options are: %s",
			ErrUnknownScenario, token, strings.Join(validTokens(), ", "),
		)
	}
	if !s.Published() {
		return nil, fmt.Errorf("%w: %s", ErrUnpublished, s.Names.Short)
	}
	return s, nil
}

func validTokens() []string {
	tokens := make([]string, 0, len(byToken))
	for token := range byToken {
		tokens = append(tokens, token)
	}
	sort.Strings(tokens)
	return tokens
}
