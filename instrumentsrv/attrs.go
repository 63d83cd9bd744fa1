package instrumentsrv

import "github.com/nasa-jpl/usbtmcd/usbtmc"

// attrNames maps the URL path segment used for /attribute/<name> to the
// usbtmc.AttrID it names. Only these names are accepted; numeric ids
// are not.
var attrNames = map[string]usbtmc.AttrID{
	"auto-abort-on-error": usbtmc.AttrAutoAbortOnError,
	"read-mode":           usbtmc.AttrReadMode,
	"timeout":             usbtmc.AttrTimeout,
	"term-char-enabled":   usbtmc.AttrTermCharEnabled,
	"term-char":           usbtmc.AttrTermChar,
	"add-nl-on-read":      usbtmc.AttrAddNlOnRead,
	"rem-nl-on-write":     usbtmc.AttrRemNlOnWrite,
	"num-instruments":     usbtmc.AttrNumInstruments,
	"minor-numbers":       usbtmc.AttrMinorNumbers,
	"size-io-buffer":      usbtmc.AttrSizeIOBuffer,
	"default-timeout":     usbtmc.AttrDefaultTimeout,
	"debug-mode":          usbtmc.AttrDebugMode,
	"version":             usbtmc.AttrVersion,
}

func parseAttrID(s string) (usbtmc.AttrID, bool) {
	id, ok := attrNames[s]
	return id, ok
}
