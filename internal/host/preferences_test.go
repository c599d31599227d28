package host

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/danmuck/lvctl/internal/testutil/testlog"
)

func TestDefaultPreferences(t *testing.T) {
	testlog.Start(t)
	p := DefaultPreferences()
	checks := map[string]string{
		"IsFirstLaunch":     "False",
		"paletteLazyLoad":   "True",
		"prefDlgTestData":   "1234",
		"autoerr":           "3",
		"menuSetup":         `"default"`,
		"FPGADialogControl": `"compileSummary;compileWarning;useOldBitfile"`,
	}
	for key, want := range checks {
		if got, ok := p.Get(key); !ok || got != want {
			t.Fatalf("%s got=%q ok=%v want=%q", key, got, ok, want)
		}
	}
	if keys := p.Keys(); keys[0] != "IsFirstLaunch" || keys[len(keys)-1] != "showDetailsInLoadingDialog" {
		t.Fatalf("key order changed: %v", keys)
	}
}

func TestPreferencesDialogAndReportingSwitches(t *testing.T) {
	testlog.Start(t)
	p := DefaultPreferences()
	before := len(p.Keys())
	p.DisableDialogs()
	p.DisableErrorReporting()
	if v, _ := p.Get("SaveChangesAutoSelection"); v != `"dont"` {
		t.Fatalf("SaveChangesAutoSelection=%q", v)
	}
	if v, _ := p.Get("NIERShowFatalDialog"); v != "0" {
		t.Fatalf("NIERShowFatalDialog=%q", v)
	}
	if v, _ := p.Get("NIER"); v != "False" {
		t.Fatalf("NIER=%q", v)
	}
	// autoerr and AutoSaveEnabled already existed
	if got := len(p.Keys()); got != before+16 {
		t.Fatalf("expected %d keys, got %d", before+16, got)
	}
}

func TestAddToSearchPath(t *testing.T) {
	testlog.Start(t)
	p := DefaultPreferences()
	p.AddToSearchPath(`C:\vis`, false)
	got, _ := p.Get("viSearchPath")
	if want := `"C:\vis;` + DefaultSearchPath + `"`; got != want {
		t.Fatalf("prepend got=%s want=%s", got, want)
	}

	p.AddToSearchPath(`D:\more`, true)
	got, _ = p.Get("viSearchPath")
	if !strings.HasSuffix(got, `;D:\more"`) || !strings.HasPrefix(got, `"C:\vis;`) {
		t.Fatalf("append got=%s", got)
	}

	p.AddToSearchPath(`C:\vis`, true)
	again, _ := p.Get("viSearchPath")
	if again != got {
		t.Fatalf("existing entry moved: %s", again)
	}
}

func TestPreferencesWriteAndLoad(t *testing.T) {
	testlog.Start(t)
	p := DefaultPreferences()
	p.DisableDialogs()
	p.AddToSearchPath(`C:\vis`, false)

	var buf bytes.Buffer
	if _, err := p.WriteTo(&buf); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !strings.HasPrefix(buf.String(), "[LabVIEW]") {
		t.Fatalf("missing section header: %q", buf.String())
	}
	if strings.Contains(buf.String(), "`") {
		t.Fatalf("values were backtick quoted: %s", buf.String())
	}

	dir := t.TempDir()
	path, err := p.WriteTemp(dir)
	if err != nil {
		t.Fatalf("write temp: %v", err)
	}
	if filepath.Dir(path) != dir || filepath.Ext(path) != ".ini" {
		t.Fatalf("unexpected path %s", path)
	}
	loaded, err := LoadPreferences(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	for _, key := range p.Keys() {
		want, _ := p.Get(key)
		if got, _ := loaded.Get(key); got != want {
			t.Fatalf("%s got=%q want=%q", key, got, want)
		}
	}
}
