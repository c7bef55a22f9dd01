package transform

import (
	_ "embed"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/Fadil369/brainsait-rcm-sub002/rcmsync/models"
)

//go:embed tables.toml
var tablesTOML string

type codeEntry struct {
	En       string `toml:"en"`
	Ar       string `toml:"ar"`
	Category string `toml:"category"`
}

type payerEntry struct {
	En string `toml:"en"`
	Ar string `toml:"ar"`
}

type lookupTables struct {
	Codes  map[string]codeEntry  `toml:"codes"`
	Payers map[string]payerEntry `toml:"payers"`
}

var tables lookupTables

func init() {
	if _, err := toml.Decode(tablesTOML, &tables); err != nil {
		panic("transform: embedded tables.toml is invalid: " + err.Error())
	}
}

// reasonFor maps a rejection code to its bilingual canonical reason. Unknown
// codes fall back to the raw reason string (or the code itself) for both
// languages; fallback is not an error.
func reasonFor(code, rawReason string) models.BilingualText {
	if entry, ok := tables.Codes[strings.ToUpper(code)]; ok {
		return models.BilingualText{En: entry.En, Ar: entry.Ar}
	}
	text := rawReason
	if text == "" {
		text = code
	}
	return models.BilingualText{En: text, Ar: text}
}

// categoryFor classifies a rejection code. Unknown codes default to
// ADMINISTRATIVE, the least assuming category.
func categoryFor(code string) models.Category {
	if entry, ok := tables.Codes[strings.ToUpper(code)]; ok {
		return models.Category(entry.Category)
	}
	return models.CategoryAdministrative
}

// payerNameFor maps a known payer to its bilingual name, trying the payer
// code first and the reported name second; otherwise passes the reported
// name through unchanged.
func payerNameFor(code, rawName string) models.BilingualText {
	if entry, ok := tables.Payers[strings.ToUpper(code)]; ok {
		return models.BilingualText{En: entry.En, Ar: entry.Ar}
	}
	if entry, ok := tables.Payers[strings.ToUpper(rawName)]; ok {
		return models.BilingualText{En: entry.En, Ar: entry.Ar}
	}
	name := rawName
	if name == "" {
		name = code
	}
	return models.BilingualText{En: name, Ar: name}
}
