package run_test

import (
	"strings"
	"testing"

	"github.com/dave/dst"
	"github.com/dave/dst/decorator"

	"github.com/stuntkit/stunt/stuntgen/run"
)

const catSource = `package pets

import "time"

type Cat interface {
	Sound() string
	EatFood(food string, amount int) (bool, error)
	Nap(d time.Duration)
	Visit(places ...string) map[string][]int
}
`

func parseCat(t *testing.T) []*dst.File {
	t.Helper()

	file, err := decorator.Parse(catSource)
	if err != nil {
		t.Fatalf("failed to parse source: %v", err)
	}

	return []*dst.File{file}
}

func generateCat(t *testing.T) string {
	t.Helper()

	files := parseCat(t)

	iface, err := run.FindInterface(files, "Cat")
	if err != nil {
		t.Fatalf("failed to find interface: %v", err)
	}

	generated, err := run.Generate("pets", "Cat", "CatDouble", iface, run.BuildImportMap(files))
	if err != nil {
		t.Fatalf("failed to generate: %v", err)
	}

	return generated
}

func TestGenerate_DispatchTable(t *testing.T) {
	t.Parallel()

	generated := generateCat(t)

	if !strings.Contains(generated, `sess.NewDouble("Cat", "Sound", "EatFood", "Nap", "Visit")`) {
		t.Errorf("expected dispatch table with all members, got:\n%s", generated)
	}
}

func TestGenerate_DispatchMethods(t *testing.T) {
	t.Parallel()

	generated := generateCat(t)

	for _, want := range []string{
		"\"time\"",
		"func (d *CatDouble) Sound() string {",
		"func (d *CatDouble) EatFood(food string, amount int) (bool, error) {",
		"func (d *CatDouble) Nap(a0 time.Duration) {",
		"func (d *CatDouble) Visit(places ...string) map[string][]int {",
		`vals := d.D.Record("EatFood", food, amount)`,
		"stunt.Ret[bool](vals, 0), stunt.Ret[error](vals, 1)",
		`d.D.Record("Nap", a0)`,
	} {
		if !strings.Contains(generated, want) {
			t.Errorf("expected generated code to contain %q, got:\n%s", want, generated)
		}
	}
}

func TestFindInterface_Missing(t *testing.T) {
	t.Parallel()

	if _, err := run.FindInterface(parseCat(t), "Dog"); err == nil {
		t.Error("expected an error for a missing interface")
	}
}
