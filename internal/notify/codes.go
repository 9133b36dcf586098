package notify

import (
	_ "embed"
	"regexp"

	"gopkg.in/yaml.v3"
)

//go:embed codes.yaml
var codesYAML []byte

type codeTables struct {
	Subjects   map[string]string `yaml:"subjects"`
	Conditions map[string]string `yaml:"conditions"`
}

var codes codeTables

func init() {
	if err := yaml.Unmarshal(codesYAML, &codes); err != nil {
		panic("notify: embedded codes.yaml is invalid: " + err.Error())
	}
}

// qualifierRe pulls the five-letter Q qualifier out of the Q) line, e.g.
// "Q) OIIX/QMRLC/IV/NBO/A/000/999/3525N05109E005" yields "QMRLC".
var qualifierRe = regexp.MustCompile(`Q\)\s*[A-Z]{4}/(Q[A-Z]{4})`)

// Classification is the structural summary shown in a notification.
type Classification struct {
	Subject   string
	Condition string
	Qualifier string
}

// classifyFromText derives a classification from the raw message's Q-code
// when the decoder produced nothing usable. Unmapped codes fall through to
// "unclassified".
func classifyFromText(raw string) Classification {
	c := Classification{Subject: "unclassified", Condition: ""}

	m := qualifierRe.FindStringSubmatch(raw)
	if m == nil {
		return c
	}
	qual := m[1]
	c.Qualifier = qual

	if subject, ok := codes.Subjects[qual[1:3]]; ok {
		c.Subject = subject
	}
	if condition, ok := codes.Conditions[qual[3:5]]; ok {
		c.Condition = condition
	}
	return c
}
