// Package vocab loads the controlled vocabularies (sectors, skills,
// cities) from YAML files and provides canonical text folding for
// comparison keys. A Set is loaded once per run and is immutable for
// its duration.
package vocab

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/jobpulse/jobpulse-cli/internal/config"
)

// Unclassified is the fallback sector bucket. Records that do not map
// to a known sector land here; they are never dropped.
const Unclassified = "unclassified"

// ErrVocabularyMissing marks a failed vocabulary load. It is fatal:
// the pipeline aborts before fetching because nothing downstream can
// proceed correctly without the vocabularies.
var ErrVocabularyMissing = eris.New("vocabulary missing")

type sectorsFile struct {
	Sectors []string          `yaml:"sectors"`
	Aliases map[string]string `yaml:"aliases"`
}

type skillsFile struct {
	Skills []struct {
		Name     string   `yaml:"name"`
		Synonyms []string `yaml:"synonyms"`
	} `yaml:"skills"`
}

type citiesFile struct {
	Cities []struct {
		Name    string   `yaml:"name"`
		Aliases []string `yaml:"aliases"`
	} `yaml:"cities"`
}

// Set is the immutable vocabulary set for one run.
type Set struct {
	sectors     map[string]string // folded name or alias -> canonical sector
	sectorNames []string
	skills      map[string]string // folded term -> canonical skill
	skillMaxLen int
	cities      map[string]string // folded name or alias -> canonical city
}

// LoadSet reads all three vocabulary files. Any failure is wrapped
// with ErrVocabularyMissing.
func LoadSet(cfg config.VocabConfig) (*Set, error) {
	s := &Set{
		sectors: make(map[string]string),
		skills:  make(map[string]string),
		cities:  make(map[string]string),
	}

	var sf sectorsFile
	if err := readYAML(cfg.SectorsPath, &sf); err != nil {
		return nil, eris.Wrapf(ErrVocabularyMissing, "load sectors %s: %v", cfg.SectorsPath, err)
	}
	for _, name := range sf.Sectors {
		s.sectors[Fold(name)] = name
		s.sectorNames = append(s.sectorNames, name)
	}
	for alias, name := range sf.Aliases {
		s.sectors[Fold(alias)] = name
	}

	var kf skillsFile
	if err := readYAML(cfg.SkillsPath, &kf); err != nil {
		return nil, eris.Wrapf(ErrVocabularyMissing, "load skills %s: %v", cfg.SkillsPath, err)
	}
	for _, sk := range kf.Skills {
		s.addSkillTerm(sk.Name, sk.Name)
		for _, syn := range sk.Synonyms {
			s.addSkillTerm(syn, sk.Name)
		}
	}

	var cf citiesFile
	if err := readYAML(cfg.CitiesPath, &cf); err != nil {
		return nil, eris.Wrapf(ErrVocabularyMissing, "load cities %s: %v", cfg.CitiesPath, err)
	}
	for _, c := range cf.Cities {
		s.cities[Fold(c.Name)] = c.Name
		for _, alias := range c.Aliases {
			s.cities[Fold(alias)] = c.Name
		}
	}

	return s, nil
}

func (s *Set) addSkillTerm(term, canonical string) {
	folded := Fold(term)
	if folded == "" {
		return
	}
	s.skills[folded] = canonical
	if n := len(strings.Fields(folded)); n > s.skillMaxLen {
		s.skillMaxLen = n
	}
}

func readYAML(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, out)
}

// Sector maps a raw sector value to its canonical name, defaulting to
// Unclassified.
func (s *Set) Sector(raw string) string {
	if name, ok := s.sectors[Fold(raw)]; ok {
		return name
	}
	return Unclassified
}

// Sectors returns the canonical sector names in file order.
func (s *Set) Sectors() []string {
	out := make([]string, len(s.sectorNames))
	copy(out, s.sectorNames)
	return out
}

// SkillCount returns the number of distinct canonical skills.
func (s *Set) SkillCount() int {
	distinct := make(map[string]bool, len(s.skills))
	for _, canonical := range s.skills {
		distinct[canonical] = true
	}
	return len(distinct)
}

// CityCount returns the number of distinct canonical cities.
func (s *Set) CityCount() int {
	distinct := make(map[string]bool, len(s.cities))
	for _, canonical := range s.cities {
		distinct[canonical] = true
	}
	return len(distinct)
}

// City maps a raw city value to its canonical name. Unknown cities
// keep their folded display form rather than being dropped.
func (s *Set) City(raw string) string {
	folded := Fold(raw)
	if name, ok := s.cities[folded]; ok {
		return name
	}
	return strings.TrimSpace(raw)
}

// ExtractSkills scans free text for vocabulary skills using tokenized
// case-insensitive n-gram matching, longest match first. The window
// follows the longest term in the loaded vocabulary. Matches are
// returned canonicalized, in order of first appearance, with
// duplicates removed. Terms outside the vocabulary are discarded,
// never invented.
func (s *Set) ExtractSkills(text string) []string {
	tokens := strings.Fields(Fold(text))
	if len(tokens) == 0 {
		return nil
	}

	window := s.skillMaxLen
	if window < 1 {
		window = 1
	}

	var out []string
	seen := make(map[string]bool)
	for i := 0; i < len(tokens); i++ {
		for n := window; n >= 1; n-- {
			if i+n > len(tokens) {
				continue
			}
			gram := strings.Join(tokens[i:i+n], " ")
			canonical, ok := s.skills[gram]
			if !ok {
				continue
			}
			if !seen[canonical] {
				seen[canonical] = true
				out = append(out, canonical)
			}
			i += n - 1
			break
		}
	}
	return out
}
