package outline

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Document is the parsed course outline: modules containing lessons and labs.
type Document struct {
	Course  string   `yaml:"course"`
	Modules []Module `yaml:"modules"`
}

// Module is one top-level outline section.
type Module struct {
	ID      string   `yaml:"id"`
	Title   string   `yaml:"title"`
	Lessons []Lesson `yaml:"lessons,omitempty"`

	// Labs is the module-level lab placement. Labs may equivalently appear
	// under Lesson.Lab; Document.Labs normalizes both shapes.
	Labs []Lab `yaml:"labs,omitempty"`
}

// Lesson is one teachable unit within a module.
type Lesson struct {
	ID     string   `yaml:"id"`
	Title  string   `yaml:"title"`
	Topics []string `yaml:"topics,omitempty"`

	// Lab is the lesson-level lab placement, an alternate schema shape to
	// Module.Labs.
	Lab *Lab `yaml:"lab,omitempty"`
}

// Lab is one hands-on activity.
type Lab struct {
	ID        string `yaml:"id"`
	Title     string `yaml:"title"`
	Objective string `yaml:"objective,omitempty"`
}

// ValidationError reports a structural problem in an outline document. It is
// fatal: no pipeline stage may run against a document that fails validation.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return "outline: " + e.Msg
}

// Parse decodes an outline document from YAML.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("outline: parse: %w", err)
	}
	return &doc, nil
}

// Load reads and parses an outline document from a file.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("outline: read %s: %w", path, err)
	}
	return Parse(data)
}

// Validate checks the document's structure. Every module needs an id, every
// lesson and lab needs an id, and no lesson or lab id may appear twice.
func (d *Document) Validate() error {
	if len(d.Modules) == 0 {
		return &ValidationError{Msg: "document has no modules"}
	}

	seenLessons := make(map[string]bool)
	seenLabs := make(map[string]bool)

	for i, m := range d.Modules {
		if m.ID == "" {
			return &ValidationError{Msg: fmt.Sprintf("module %d has no id", i)}
		}
		for _, l := range m.Lessons {
			if l.ID == "" {
				return &ValidationError{Msg: fmt.Sprintf("module %s: lesson with empty id", m.ID)}
			}
			if seenLessons[l.ID] {
				return &ValidationError{Msg: fmt.Sprintf("duplicate lesson id %s", l.ID)}
			}
			seenLessons[l.ID] = true
			if l.Lab != nil && l.Lab.ID == "" {
				return &ValidationError{Msg: fmt.Sprintf("lesson %s: lab with empty id", l.ID)}
			}
		}
		for _, lab := range m.Labs {
			if lab.ID == "" {
				return &ValidationError{Msg: fmt.Sprintf("module %s: lab with empty id", m.ID)}
			}
		}
	}

	// Duplicate lab ids are checked over the normalized view so the two
	// placements share one id space. A lab listed in both shapes is legal
	// (lesson-level wins) but the same id twice within one shape is not.
	for _, m := range d.Modules {
		perShape := make(map[string]bool)
		for _, lab := range m.Labs {
			if perShape[lab.ID] {
				return &ValidationError{Msg: fmt.Sprintf("module %s: duplicate lab id %s", m.ID, lab.ID)}
			}
			perShape[lab.ID] = true
		}
	}
	labs, _ := d.Labs()
	for _, lab := range labs {
		if seenLabs[lab.ID] {
			return &ValidationError{Msg: fmt.Sprintf("duplicate lab id %s", lab.ID)}
		}
		seenLabs[lab.ID] = true
	}

	return nil
}

// AllLessons returns every lesson in outline order.
func (d *Document) AllLessons() []Lesson {
	var out []Lesson
	for _, m := range d.Modules {
		out = append(out, m.Lessons...)
	}
	return out
}

// Labs returns every lab in outline order, normalized across the two schema
// shapes (module-level "labs:" and lesson-level "lab:"). When the same lab id
// appears in both shapes, the lesson-level placement wins and a warning is
// returned so the caller can flag the ambiguity instead of silently guessing.
func (d *Document) Labs() ([]Lab, []string) {
	var out []Lab
	var warnings []string
	for _, m := range d.Modules {
		labs, warns := m.NormalizedLabs()
		out = append(out, labs...)
		warnings = append(warnings, warns...)
	}
	return out, warnings
}

// NormalizedLabs returns the module's labs with the two placements folded into
// one list: lesson-level labs first (in lesson order), then module-level labs
// that don't duplicate a lesson-level id.
func (m Module) NormalizedLabs() ([]Lab, []string) {
	var out []Lab
	var warnings []string

	lessonLevel := make(map[string]bool)
	for _, l := range m.Lessons {
		if l.Lab != nil {
			out = append(out, *l.Lab)
			lessonLevel[l.Lab.ID] = true
		}
	}
	for _, lab := range m.Labs {
		if lessonLevel[lab.ID] {
			warnings = append(warnings, fmt.Sprintf(
				"module %s: lab %s appears under both placements; using lesson-level", m.ID, lab.ID))
			continue
		}
		out = append(out, lab)
	}
	return out, warnings
}

// FindLesson returns the lesson with the given id, or nil.
func (d *Document) FindLesson(id string) *Lesson {
	for _, m := range d.Modules {
		for i := range m.Lessons {
			if m.Lessons[i].ID == id {
				return &m.Lessons[i]
			}
		}
	}
	return nil
}

// FindLab returns the normalized lab with the given id, or nil.
func (d *Document) FindLab(id string) *Lab {
	labs, _ := d.Labs()
	for i := range labs {
		if labs[i].ID == id {
			return &labs[i]
		}
	}
	return nil
}
