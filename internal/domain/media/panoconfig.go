package media

import (
	"bytes"
	"fmt"
	"regexp"

	"github.com/tidwall/gjson"
)

// The authoring tool emits its viewer configuration as a script file
// assigning one big object literal. Instead of evaluating it, the literal is
// cut out, normalized to JSON and read with gjson, so only data can come out
// of it.

var (
	bareKeyRe       = regexp.MustCompile(`([{,]\s*)([A-Za-z_][A-Za-z0-9_]*)\s*:`)
	singleQuotedRe  = regexp.MustCompile(`'([^'\\]*)'`)
	trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)
)

// ParsePanoConfig extracts the tile-pyramid levels and initial view
// parameters from the authoring tool's data script.
func ParsePanoConfig(data []byte) (*PanoData, error) {
	start := bytes.IndexByte(data, '{')
	end := bytes.LastIndexByte(data, '}')
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no object literal found in viewer config")
	}

	literal := data[start : end+1]
	if !gjson.ValidBytes(literal) {
		literal = normalizeLiteral(literal)
		if !gjson.ValidBytes(literal) {
			return nil, fmt.Errorf("viewer config literal is not parseable")
		}
	}

	out := &PanoData{}

	levels := firstExisting(literal, "scenes.0.levels", "levels")
	levels.ForEach(func(_, lv gjson.Result) bool {
		out.Levels = append(out.Levels, Level{
			TileSize:     int(lv.Get("tileSize").Int()),
			Size:         int(lv.Get("size").Int()),
			FallbackOnly: lv.Get("fallbackOnly").Bool(),
		})
		return true
	})

	if ivp := firstExisting(literal, "scenes.0.initialViewParameters", "initialViewParameters"); ivp.Exists() {
		out.InitialViewParameters = &ViewParameters{
			Yaw:   ivp.Get("yaw").Float(),
			Pitch: ivp.Get("pitch").Float(),
			FOV:   ivp.Get("fov").Float(),
		}
	}

	if len(out.Levels) == 0 && out.InitialViewParameters == nil {
		return nil, fmt.Errorf("viewer config has neither levels nor initial view parameters")
	}
	return out, nil
}

// normalizeLiteral turns the script-flavored object literal (bare keys,
// single quotes, trailing commas) into strict JSON.
func normalizeLiteral(literal []byte) []byte {
	literal = bareKeyRe.ReplaceAll(literal, []byte(`$1"$2":`))
	literal = singleQuotedRe.ReplaceAll(literal, []byte(`"$1"`))
	literal = trailingCommaRe.ReplaceAll(literal, []byte(`$1`))
	return literal
}

func firstExisting(data []byte, paths ...string) gjson.Result {
	for _, p := range paths {
		if r := gjson.GetBytes(data, p); r.Exists() {
			return r
		}
	}
	return gjson.Result{}
}
