package ifacemap

import (
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type corpusPair struct {
	Interface string
	Type      string
}

type corpusCase struct {
	want    []corpusPair
	notWant []corpusPair
}

// corpusCases lists implementation pairs per testdata/go level. Levels not
// listed are still indexed and must not skip files.
var corpusCases = map[string]corpusCase{
	"level-02-structs-interfaces": {
		want:    []corpusPair{{"Handler", "Server"}},
		notWant: []corpusPair{{"Handler", "Config"}},
	},
	"level-05-embedding": {
		want: []corpusPair{{"Reader", "MyReader"}, {"Writer", "MyReadWriter"}},
		// Promoted methods through struct embedding are not followed.
		notWant: []corpusPair{{"Writer", "MyReader"}, {"Reader", "MyReadWriter"}},
	},
	"level-08-multi-file-interfaces": {
		want: []corpusPair{{"Animal", "Dog"}, {"Mover", "Dog"}},
	},
}

// TestCorpus indexes every testdata/go/<level>/src tree from disk.
func TestCorpus(t *testing.T) {
	root := filepath.Join("testdata", "go")
	levels, err := os.ReadDir(root)
	if err != nil {
		t.Skip("no testdata directory found")
	}

	for _, level := range levels {
		if !level.IsDir() {
			continue
		}
		name := level.Name()
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			e, err := New(filepath.Join(root, name, "src"), WithGit(false), WithLogger(quietLogger()))
			require.NoError(t, err)
			stats := rebuild(t, e)
			assert.Empty(t, stats.Skipped)
			assert.Positive(t, stats.Files)

			q := e.Query()
			for _, iface := range q.Interfaces() {
				methods := q.MethodsOf(iface)
				sum, ok := q.ImplementationSummary(iface)
				if !ok {
					continue
				}
				assert.Equal(t, len(sum.Implementations), sum.Count)
				for _, rec := range sum.Implementations {
					assert.NotEmpty(t, rec.DeclaringFile, "%s for %s", rec.ConcreteType, iface)
					for _, m := range methods {
						found := slices.ContainsFunc(q.Declarations(m), func(d Declaration) bool {
							return d.ReceiverType == rec.ConcreteType
						})
						assert.True(t, found, "%s lacks %s required by %s", rec.ConcreteType, m, iface)
					}
				}
			}

			tc := corpusCases[name]
			for _, p := range tc.want {
				assert.Contains(t, q.InterfacesImplementedBy(p.Type), p.Interface, "%s should implement %s", p.Type, p.Interface)
			}
			for _, p := range tc.notWant {
				assert.NotContains(t, q.InterfacesImplementedBy(p.Type), p.Interface, "%s should not implement %s", p.Type, p.Interface)
			}
		})
	}
}
