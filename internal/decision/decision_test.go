package decision

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindWireNames(t *testing.T) {
	for _, k := range []Kind{KindJoinGroup, KindMoveToObjective, KindRaidObjective, KindEnterObjective} {
		got, err := ParseKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}
	_, err := ParseKind("")
	assert.Error(t, err)
	_, err = json.Marshal(KindNone)
	assert.Error(t, err)
}

func TestStatusTerminalSet(t *testing.T) {
	terminal := map[Status]bool{
		StatusRegistered:  false,
		StatusExecuting:   false,
		StatusCompleted:   true,
		StatusAborted:     true,
		StatusOverridden:  true,
		StatusInvalidated: true,
	}
	for s, want := range terminal {
		assert.Equal(t, want, s.Terminal(), s.String())
		assert.Equal(t, !want, s.Active(), s.String())
		_, ok := OutcomeFor(s)
		assert.Equal(t, want, ok, s.String())
	}
}

func TestOutcomeKindJSON(t *testing.T) {
	b, err := json.Marshal(OutcomeError)
	require.NoError(t, err)
	assert.Equal(t, `"Error"`, string(b))

	var k OutcomeKind
	require.NoError(t, json.Unmarshal([]byte(`"Overridden"`), &k))
	assert.Equal(t, OutcomeOverridden, k)
	assert.Error(t, json.Unmarshal([]byte(`"Success"`), &k))
}

func TestContextPreservesOrder(t *testing.T) {
	ctx := NewContextBuilder(4).
		Add("zeta", Int(3)).
		Add("alpha", String(`say "hi"`)).
		Add("mid", Float(0.5)).
		Add("none", OptString("")).
		Build()

	b, err := json.Marshal(ctx)
	require.NoError(t, err)
	assert.Equal(t, `{"zeta":3,"alpha":"say \"hi\"","mid":0.5,"none":null}`, string(b))

	var back Context
	require.NoError(t, json.Unmarshal(b, &back))
	require.Equal(t, 4, back.Len())
	names := []string{}
	for _, f := range back.Features() {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"zeta", "alpha", "mid", "none"}, names)
	v, ok := back.Get("mid")
	require.True(t, ok)
	n, _ := v.Number()
	assert.Equal(t, 0.5, n)
}

func TestContextIsolatedFromBuilder(t *testing.T) {
	b := NewContextBuilder(1).Add("a", Int(1))
	ctx := b.Build()
	b.Add("b", Int(2))
	assert.Equal(t, 1, ctx.Len())

	feats := ctx.Features()
	feats[0].Name = "mutated"
	_, ok := ctx.Get("a")
	assert.True(t, ok)
}

func TestZeroContextIsNull(t *testing.T) {
	b, err := json.Marshal(Context{})
	require.NoError(t, err)
	assert.Equal(t, "null", string(b))
}

func TestOpt(t *testing.T) {
	o := Some(KindRaidObjective)
	v, ok := o.Get()
	assert.True(t, ok)
	assert.Equal(t, KindRaidObjective, v)
	assert.False(t, Opt[string]{}.Present())
}
