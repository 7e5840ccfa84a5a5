package server

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/cbegin/midiroll-go/internal/keys"
)

var ErrBadActivation = errors.New("bad activation")

var activationRE = regexp.MustCompile(`^ACTIVATION=\[((\d+,)*(\d+)?)\]$`)

// activation is one control step posted by a client. Sustain and Time are
// nil when the client left them out.
type activation struct {
	Keys    []int    `json:"keys"`
	Sustain *bool    `json:"sustain,omitempty"`
	Time    *float64 `json:"time,omitempty"`
}

// parseActivation accepts either a JSON object or the line protocol
// ACTIVATION=[k1,k2,...]. Only the first line of a text body is read.
func parseActivation(body []byte) (activation, error) {
	trimmed := bytes.TrimSpace(body)
	if bytes.HasPrefix(trimmed, []byte("{")) {
		var a activation
		if err := json.Unmarshal(trimmed, &a); err != nil {
			return activation{}, errors.Wrapf(ErrBadActivation, "json: %v", err)
		}
		return a, nil
	}

	line, _, _ := strings.Cut(string(trimmed), "\n")
	m := activationRE.FindStringSubmatch(strings.TrimRight(line, "\r"))
	if m == nil {
		return activation{}, errors.Wrapf(ErrBadActivation, "cannot parse %q", line)
	}
	var a activation
	if m[1] == "" {
		return a, nil
	}
	for _, field := range strings.Split(m[1], ",") {
		if field == "" {
			continue
		}
		k, err := strconv.Atoi(field)
		if err != nil {
			return activation{}, errors.Wrapf(ErrBadActivation, "key %q", field)
		}
		a.Keys = append(a.Keys, k)
	}
	return a, nil
}

// vector converts key ids into an activation vector. Ids off the keyboard
// are skipped and returned.
func (a activation) vector() (v [keys.NumKeys]bool, skipped []int) {
	for _, k := range a.Keys {
		if k < keys.MinKey || k > keys.MaxKey {
			skipped = append(skipped, k)
			continue
		}
		v[k] = true
	}
	return v, skipped
}
