package host

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/ini.v1"
)

// PrefsSection is the section the host reads its tokens from.
const PrefsSection = "LabVIEW"

// DefaultSearchPath is the host's stock VI search path.
const DefaultSearchPath = `<topvi>:\*;<foundvi>:\;<vilib>:\*;<userlib>:\*;<instrlib>:\*`

// Preferences is the ordered token set written to the host's preferences
// file.
type Preferences struct {
	keys   []string
	values map[string]string
}

// DefaultPreferences returns tokens that keep a freshly launched host quiet
// and fast to load.
func DefaultPreferences() *Preferences {
	p := &Preferences{values: make(map[string]string)}
	p.Set("IsFirstLaunch", false)
	p.Set("ShowWelcomeOnLaunch", false)
	p.Set("prefDlgTestData", 1234)
	p.Set("defaultErrorHandlingForNewVIs", false)
	p.Set("playAnimatedImages", false)
	p.Set("SnapGridDrawAsLines", 1)
	p.Set("paletteAsyncLoad", false)
	p.Set("paletteLazyLoad", true)
	p.Set("autoerr", 3)
	p.Set("postScriptLevel2", false)
	p.Set("saveFloaterLocations", true)
	p.Set("menuSetup", `"default"`)
	p.Set("simpleDiagramHelp", false)
	p.Set("GSW_RSSCheckEnabled", false)
	p.Set("AutoSaveEnabled", false)
	p.Set("nirviShowCompileWarning", false)
	p.Set("FPGADialogControl", `"compileSummary;compileWarning;useOldBitfile"`)
	p.Set("showDetailsInLoadingDialog", true)
	return p
}

// Set stores a token. Bools are written as True/False.
func (p *Preferences) Set(key string, v any) {
	if p.values == nil {
		p.values = make(map[string]string)
	}
	if _, ok := p.values[key]; !ok {
		p.keys = append(p.keys, key)
	}
	p.values[key] = formatToken(v)
}

func (p *Preferences) Get(key string) (string, bool) {
	v, ok := p.values[key]
	return v, ok
}

// Keys returns tokens in insertion order.
func (p *Preferences) Keys() []string {
	return append([]string(nil), p.keys...)
}

func formatToken(v any) string {
	switch t := v.(type) {
	case bool:
		if t {
			return "True"
		}
		return "False"
	case int:
		return strconv.Itoa(t)
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}

// DisableDialogs suppresses modal dialogs that would block an unattended
// host.
func (p *Preferences) DisableDialogs() {
	p.Set("DeployDlgCloseWindow", true)
	p.Set("nirviShowErrorDialogs", false)
	p.Set("nirviShowErrorDialogsOld", false)
	p.Set("NiFpga_BuildPrompt_SelectCompileServer", false)
	p.Set("DWarnDialog", false)
	p.Set("SuppressRTConnectionDialogs", true)
	p.Set("neverShowAddonLicensingStartup", true)
	p.Set("neverShowLicensingStartupDialog", true)
	p.Set("SaveChanges_ApplyToAll", true)
	p.Set("SaveChangesAutoSelection", `"dont"`)
	p.Set("autoerr", 3)
	p.Set("NIERShowFatalDialog", 0)
	p.Set("NIERFatalAutoSend", true)
	p.Set("NIERSendDialogClose", true)
	p.Set("NIERShowNonFatalDialogOnExit", false)
	p.Set("NIERAutoSendAndSuppressAllDialogs", true)
	p.Set("AutoSaveEnabled", false)
}

func (p *Preferences) DisableErrorReporting() {
	p.Set("NIER", false)
}

// AddToSearchPath adds path to viSearchPath, in front unless appendPath is
// set. A path already present is left where it is.
func (p *Preferences) AddToSearchPath(path string, appendPath bool) {
	current, ok := p.Get("viSearchPath")
	if !ok {
		current = DefaultSearchPath
	}
	entries := strings.Split(strings.Trim(current, `"'`), ";")
	for _, entry := range entries {
		if entry == path {
			p.Set("viSearchPath", `"`+strings.Join(entries, ";")+`"`)
			return
		}
	}
	if appendPath {
		entries = append(entries, path)
	} else {
		entries = append([]string{path}, entries...)
	}
	p.Set("viSearchPath", `"`+strings.Join(entries, ";")+`"`)
}

// File renders the tokens as an ini document.
func (p *Preferences) File() (*ini.File, error) {
	f := ini.Empty(ini.LoadOptions{IgnoreInlineComment: true})
	sec, err := f.NewSection(PrefsSection)
	if err != nil {
		return nil, err
	}
	for _, key := range p.keys {
		if _, err := sec.NewKey(key, p.values[key]); err != nil {
			return nil, fmt.Errorf("host: preferences key %q: %w", key, err)
		}
	}
	return f, nil
}

func (p *Preferences) WriteTo(w io.Writer) (int64, error) {
	f, err := p.File()
	if err != nil {
		return 0, err
	}
	return f.WriteTo(w)
}

// WriteTemp writes the preferences to a new .ini file in dir and returns its
// path.
func (p *Preferences) WriteTemp(dir string) (string, error) {
	out, err := os.CreateTemp(dir, "lvctl-*.ini")
	if err != nil {
		return "", err
	}
	if _, err := p.WriteTo(out); err != nil {
		_ = out.Close()
		_ = os.Remove(out.Name())
		return "", err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(out.Name())
		return "", err
	}
	return out.Name(), nil
}

// LoadPreferences reads tokens back from an ini file.
func LoadPreferences(path string) (*Preferences, error) {
	f, err := ini.LoadSources(ini.LoadOptions{
		IgnoreInlineComment:     true,
		IgnoreContinuation:      true,
		PreserveSurroundedQuote: true,
	}, path)
	if err != nil {
		return nil, err
	}
	p := &Preferences{values: make(map[string]string)}
	for _, key := range f.Section(PrefsSection).Keys() {
		p.Set(key.Name(), key.Value())
	}
	return p, nil
}
