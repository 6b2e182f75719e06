package memory

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Fixtures are the reference rows (authors, countries, blogs) a Store needs
// before it accepts views.
type Fixtures struct {
	Authors []struct {
		ID       int64  `yaml:"id"`
		Username string `yaml:"username"`
	} `yaml:"authors"`
	Countries []struct {
		Code string `yaml:"code"`
		Name string `yaml:"name"`
	} `yaml:"countries"`
	Blogs []struct {
		ID       int64  `yaml:"id"`
		Title    string `yaml:"title"`
		AuthorID int64  `yaml:"author_id"`
	} `yaml:"blogs"`
}

// LoadFixtures adds the rows of a YAML fixtures document to the store.
func (s *Store) LoadFixtures(data []byte) error {
	var f Fixtures
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parse fixtures: %w", err)
	}

	for _, a := range f.Authors {
		s.AddAuthor(a.ID, a.Username)
	}
	for _, c := range f.Countries {
		s.AddCountry(c.Code, c.Name)
	}
	for _, b := range f.Blogs {
		if err := s.AddBlog(b.ID, b.Title, b.AuthorID); err != nil {
			return fmt.Errorf("blog %d: %w", b.ID, err)
		}
	}
	return nil
}

// LoadFixturesFile is LoadFixtures on the contents of path.
func (s *Store) LoadFixturesFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read fixtures %s: %w", path, err)
	}
	return s.LoadFixtures(data)
}
