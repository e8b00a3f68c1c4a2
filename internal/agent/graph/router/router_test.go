package router

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chative/lending-agent/internal/agent/model"
	"github.com/chative/lending-agent/internal/testutils"
)

func TestRulesClassify(t *testing.T) {
	r := DefaultRules(20, false)
	cases := map[string]model.Tier{
		"hello":                      model.TierFast,
		"Hi there!":                  model.TierFast,
		"thanks so much":             model.TierFast,
		"What's my current balance?": model.TierFast,
		"":                           model.TierFast,
		"Please approve application APP-1001 with the attached notes": model.TierCapable,
		"hello " + strings.Repeat("word ", 25):                        model.TierCapable,
		"why was my rate lock extended":                               model.TierCapable,
	}
	for in, want := range cases {
		assert.Equal(t, want, r.Classify(in), in)
	}

	assert.Equal(t, model.TierCapable, DefaultRules(20, true).Classify("hello"))
}

func TestClassifyUsesModelVerdict(t *testing.T) {
	cm := testutils.Text("COMPLEX")
	r := New(cm, "- get_balance: balance", DefaultRules(20, false), time.Second)

	d := r.Classify(context.Background(), "hello")
	assert.Equal(t, model.TierCapable, d.Tier)
	assert.Equal(t, SourceModel, d.Source)

	calls := cm.Calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0][0].Content, "- get_balance: balance")
	assert.Equal(t, "hello", calls[0][1].Content)
}

func TestClassifyFallsBackOnFailure(t *testing.T) {
	rules := DefaultRules(20, false)
	models := map[string]*testutils.ChatModel{
		"error":       testutils.Failing(errors.New("boom")),
		"unparseable": testutils.Text("I am not sure"),
		"nil message": {Reply: func(context.Context, int, []*schema.Message) (*schema.Message, error) { return nil, nil }},
		"timeout":     {Reply: testutils.Text("SIMPLE").Reply, Delay: time.Second},
	}
	for name, cm := range models {
		r := New(cm, "", rules, 20*time.Millisecond)
		d := r.Classify(context.Background(), "hello")
		assert.Equal(t, model.TierFast, d.Tier, name)
		assert.Equal(t, SourceFallback, d.Source, name)
		assert.Error(t, d.Err, name)

		d = r.Classify(context.Background(), "please re-run the pricing engine for my loan")
		assert.Equal(t, model.TierCapable, d.Tier, name)
	}
}

func TestClassifyWithoutModel(t *testing.T) {
	d := New(nil, "", DefaultRules(20, false), 0).Classify(context.Background(), "hey")
	assert.Equal(t, model.TierFast, d.Tier)
	assert.Equal(t, SourceFallback, d.Source)
}
