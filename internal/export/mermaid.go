package export

import (
	"fmt"
	"strings"

	"github.com/dusk-indust/courseforge/internal/outline"
)

// GenerateMermaid produces a Mermaid graph TD diagram of a course outline.
// Modules become subgraphs; lessons point at their labs.
func GenerateMermaid(doc *outline.Document) string {
	nodeIDs := make(map[string]string)
	nextID := 0
	getID := func(key string) string {
		if id, ok := nodeIDs[key]; ok {
			return id
		}
		id := fmt.Sprintf("N%d", nextID)
		nextID++
		nodeIDs[key] = id
		return id
	}

	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for _, mod := range doc.Modules {
		title := mod.Title
		if title == "" {
			title = mod.ID
		}
		fmt.Fprintf(&sb, "  subgraph %s[\"%.40s\"]\n", getID("module:"+mod.ID), title)
		for _, lesson := range mod.Lessons {
			fmt.Fprintf(&sb, "    %s[\"%s\"]\n", getID(lesson.ID), lesson.Title)
		}
		labs, _ := mod.NormalizedLabs()
		for _, lab := range labs {
			fmt.Fprintf(&sb, "    %s([\"%s\"])\n", getID(lab.ID), lab.Title)
		}
		sb.WriteString("  end\n")
	}

	// Lesson-to-lab edges for lesson-attached labs.
	for _, mod := range doc.Modules {
		for _, lesson := range mod.Lessons {
			if lesson.Lab == nil {
				continue
			}
			fmt.Fprintf(&sb, "  %s --> %s\n", getID(lesson.ID), getID(lesson.Lab.ID))
		}
	}
	return sb.String()
}
