// Package sandbox decides whether a candidate mutation is safe to apply.
// Safety has two halves: a static regex denylist over the textual form of
// the payload, and dynamic execution in an isolated backend with a hard
// deadline and a memory cap. A static hit is fatal for the workflow; a
// dynamic timeout or crash is recoverable and routed to healing.
package sandbox

import (
	"fmt"
	"regexp"

	"github.com/QAntum-Fortres/QAntum-Mind-Engine-Self-Healing-sub000/pkg/contracts"
)

// StaticVerdict is the outcome of the denylist scan.
type StaticVerdict struct {
	Safe   bool   `json:"safe"`
	Reason string `json:"reason,omitempty"`
}

// denyCategory groups the forbidden patterns of one threat class. All
// categories are checked on every scan; the first hit is reported.
type denyCategory struct {
	name     string
	patterns []*regexp.Regexp
}

var denylist = []denyCategory{
	{
		name: "filesystem access",
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`require\s*\(\s*['"]fs['"]`),
			regexp.MustCompile(`\bfs\.(unlink|rm|rmdir|writeFile|readFile|open|createWriteStream)`),
			regexp.MustCompile(`\brimraf\b`),
			regexp.MustCompile(`\bopen\s*\(\s*['"]/`),
		},
	},
	{
		name: "process spawn",
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`require\s*\(\s*['"]child_process['"]`),
			regexp.MustCompile(`\b(spawn|execFile|fork)\s*\(`),
			regexp.MustCompile(`\bexecSync\s*\(`),
		},
	},
	{
		name: "network access",
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`require\s*\(\s*['"](net|http|https|dgram)['"]`),
			regexp.MustCompile(`\bfetch\s*\(`),
			regexp.MustCompile(`\bXMLHttpRequest\b`),
			regexp.MustCompile(`\bWebSocket\s*\(`),
			regexp.MustCompile(`\bnet\.(connect|createConnection|createServer)\b`),
		},
	},
	{
		name: "dynamic code generation",
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`\beval\s*\(`),
			regexp.MustCompile(`new\s+Function\s*\(`),
			regexp.MustCompile(`\bFunction\s*\(\s*['"]`),
			regexp.MustCompile(`setTimeout\s*\(\s*['"]`),
		},
	},
	{
		name: "process termination",
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`process\.(exit|kill|abort)\s*\(`),
			regexp.MustCompile(`\bos\.exit\b`),
		},
	},
	{
		name: "prototype pollution",
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`__proto__`),
			regexp.MustCompile(`Object\.prototype`),
			regexp.MustCompile(`constructor\s*\[\s*['"]prototype['"]`),
			regexp.MustCompile(`\bprototype\s*\[\s*`),
		},
	},
}

// Validate scans the mutation payload against every denylist category and
// reports the first forbidden pattern found.
func Validate(m contracts.Mutation) StaticVerdict {
	text := string(m.Payload)
	for _, cat := range denylist {
		for _, re := range cat.patterns {
			if loc := re.FindString(text); loc != "" {
				return StaticVerdict{
					Safe:   false,
					Reason: fmt.Sprintf("%s: forbidden pattern %q", cat.name, loc),
				}
			}
		}
	}
	return StaticVerdict{Safe: true}
}
