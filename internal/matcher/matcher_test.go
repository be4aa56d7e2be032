package matcher

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labtasker/labtasker/internal/domain"
)

func doc() domain.Value {
	return domain.Object(map[string]domain.Value{
		"args": domain.Object(map[string]domain.Value{
			"lr":  domain.Number(0.01),
			"tag": domain.String("cv"),
		}),
		"priority": domain.Number(10),
	})
}

func TestMatchLeaves(t *testing.T) {
	d := doc()

	assert.True(t, Match(d, Eq("args.tag", domain.String("cv"))))
	assert.False(t, Match(d, Eq("args.tag", domain.String("nlp"))))
	assert.True(t, Match(d, Ne("args.tag", domain.String("nlp"))))
	assert.True(t, Match(d, Ne("args.missing", domain.String("nlp"))))

	assert.True(t, Match(d, Lt("args.lr", domain.Number(1))))
	assert.True(t, Match(d, Gte("priority", domain.Number(10))))
	assert.False(t, Match(d, Gt("priority", domain.Number(10))))

	assert.True(t, Match(d, Exists("args.lr")))
	assert.False(t, Match(d, Exists("args.missing")))
	assert.True(t, Match(d, NotExists("args.missing")))

	assert.True(t, Match(d, In("args.tag", domain.String("nlp"), domain.String("cv"))))
	assert.False(t, Match(d, In("args.tag", domain.String("nlp"))))
}

func TestMatchMissingPathComparisonsAreFalse(t *testing.T) {
	d := doc()
	assert.False(t, Match(d, Lt("args.missing", domain.Number(1))))
	assert.False(t, Match(d, Eq("args.missing", domain.Number(1))))
	assert.False(t, Match(d, In("args.missing", domain.Number(1))))
}

func TestMatchUnorderableComparisonIsFalse(t *testing.T) {
	d := doc()
	assert.False(t, Match(d, Lt("args.tag", domain.Number(1))))
}

func TestMatchLogical(t *testing.T) {
	d := doc()
	assert.True(t, Match(d, And(Eq("args.tag", domain.String("cv")), Gte("priority", domain.Number(5)))))
	assert.False(t, Match(d, And(Eq("args.tag", domain.String("cv")), Gte("priority", domain.Number(50)))))
	assert.True(t, Match(d, Or(Eq("args.tag", domain.String("nlp")), Gte("priority", domain.Number(5)))))
	assert.True(t, Match(d, Not(Eq("args.tag", domain.String("nlp")))))
	assert.False(t, Match(d, Or()))
}

func TestRequiredFieldsMatch(t *testing.T) {
	args := domain.Object(map[string]domain.Value{
		"lr": domain.Number(0.01),
		"n":  domain.Null(),
	})
	assert.True(t, RequiredFieldsMatch(args, []string{"lr"}))
	assert.False(t, RequiredFieldsMatch(args, []string{"lr", "missing"}))
	assert.False(t, RequiredFieldsMatch(args, []string{"n"}))
}

func TestApplyPreservesSiblings(t *testing.T) {
	d := doc()
	out := Apply(d, Update{Sets: map[string]domain.Value{"args.lr": domain.Number(0.02)}})

	lr, ok := out.Get("args.lr")
	require.True(t, ok)
	n, _ := lr.Number()
	assert.Equal(t, 0.02, n)

	tag, ok := out.Get("args.tag")
	require.True(t, ok)
	s, _ := tag.String()
	assert.Equal(t, "cv", s)
}

func TestFilterUnmarshalJSON(t *testing.T) {
	raw := []byte(`{
		"op": "and",
		"children": [
			{"op": "eq", "path": "args.tag", "value": "cv"},
			{"op": "gte", "path": "priority", "value": 5}
		]
	}`)
	var f Filter
	require.NoError(t, json.Unmarshal(raw, &f))
	assert.True(t, Match(doc(), f))
}

func TestFilterUnmarshalJSONRejectsUnknownOp(t *testing.T) {
	var f Filter
	err := json.Unmarshal([]byte(`{"op":"bogus"}`), &f)
	assert.Error(t, err)
}
