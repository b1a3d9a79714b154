package query

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thisisjab/docquery/fault"
)

type recordingSubmitter struct {
	calls    int
	lastColl string
	lastBody []byte
	reply    json.RawMessage
	err      error
}

func (s *recordingSubmitter) Submit(_ context.Context, collection string, req Request) (json.RawMessage, error) {
	s.calls++
	s.lastColl = collection

	var buf bytes.Buffer
	if err := Encode(&buf, req); err != nil {
		return nil, err
	}
	s.lastBody = bytes.TrimRight(buf.Bytes(), "\n")

	return s.reply, s.err
}

func encodeCompact(t *testing.T, v any) string {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, v))
	return string(bytes.TrimRight(buf.Bytes(), "\n"))
}

func TestFetchEndToEndWireFormat(t *testing.T) {
	sub := &recordingSubmitter{reply: json.RawMessage(`[{"id":1}]`)}

	res, err := NewBuilder("users", sub).
		Where("age", OpGt, 18).
		OrderBy("name", Asc).
		Limit(10).
		Fetch(context.Background())
	require.NoError(t, err)

	assert.JSONEq(t, `[{"id":1}]`, string(res))
	assert.Equal(t, 1, sub.calls)
	assert.Equal(t, "users", sub.lastColl)
	assert.Equal(t,
		`{"query":{"from":{"users":{"where":[["age",">",18]],"orderBy":"name","sort":"asc","limit":10,"do":"fetch"}}}}`,
		string(sub.lastBody),
	)
}

func TestWhereAndOrWhereAppendInOrder(t *testing.T) {
	b := NewBuilder("users", nil).
		Where("age", OpGte, 18).
		OrWhere("role", OpEq, "admin").
		Where("name", OpLike, "Don%").
		Where("age", OpGte, 18).
		OrWhere("role", OpIn, []string{"owner", "staff"})

	clause := b.Query().Query[ScopeFrom]["users"]
	assert.Equal(t, []Condition{
		{Field: "age", Operator: OpGte, Value: 18},
		{Field: "name", Operator: OpLike, Value: "Don%"},
		{Field: "age", Operator: OpGte, Value: 18},
	}, clause.Where)
	assert.Equal(t, []Condition{
		{Field: "role", Operator: OpEq, Value: "admin"},
		{Field: "role", Operator: OpIn, Value: []string{"owner", "staff"}},
	}, clause.OrWhere)
	assert.NoError(t, b.Err())
}

func TestHavingOverwrites(t *testing.T) {
	b := NewBuilder("orders", nil).
		GroupBy("customer").
		Having("a", OpEq, 1).
		Having("b", OpEq, 2)

	assert.Equal(t,
		`{"query":{"from":{"orders":{"groupBy":["customer"],"having":["b","=",2]}}}}`,
		encodeCompact(t, b.Query()),
	)
}

func TestFieldListsAreCopied(t *testing.T) {
	fields := []string{"id", "name"}
	b := NewBuilder("users", nil).Select(fields...).GroupBy(fields...)
	fields[0] = "password"

	assert.Equal(t,
		`{"query":{"from":{"users":{"select":["id","name"],"groupBy":["id","name"]}}}}`,
		encodeCompact(t, b.Query()),
	)
}

func TestEmptyFieldListIsSent(t *testing.T) {
	b := NewBuilder("users", nil).Select().Hidden()
	assert.Equal(t, `{"query":{"from":{"users":{"select":[],"hidden":[]}}}}`, encodeCompact(t, b.Query()))

	assert.Equal(t, `{"query":{"from":{"users":{}}}}`, encodeCompact(t, NewBuilder("users", nil).Query()))
}

func TestHavingSurvivesClone(t *testing.T) {
	base := NewBuilder("orders", nil).Having("total", OpGt, 100)
	branch := base.Clone().Having("total", OpLt, 10)

	assert.Equal(t, `{"query":{"from":{"orders":{"having":["total",">",100]}}}}`, encodeCompact(t, base.Query()))
	assert.Equal(t, `{"query":{"from":{"orders":{"having":["total","<",10]}}}}`, encodeCompact(t, branch.Query()))
}

func TestOrderByMatchesSort(t *testing.T) {
	a := NewBuilder("users", nil).OrderBy("name", Desc)
	b := NewBuilder("users", nil).OrderBy("name", Asc).Sort(Desc)

	assert.Equal(t, encodeCompact(t, a.Query()), encodeCompact(t, b.Query()))
	assert.Equal(t, "name", a.clause.OrderBy)
	assert.Equal(t, Desc, a.clause.Sort)
}

func TestDirectionIsNotNormalized(t *testing.T) {
	b := NewBuilder("users", nil).OrderBy("name", DescUpper)
	assert.Equal(t, `{"query":{"from":{"users":{"orderBy":"name","sort":"DESC"}}}}`, encodeCompact(t, b.Query()))
}

func TestNestedJoins(t *testing.T) {
	b := NewBuilder("users", nil).
		Select("id", "name").
		HasMany("posts", func(posts *Relationship) {
			posts.
				Where("published", OpEq, true).
				OrderBy("createdAt", DescUpper).
				Limit(5).
				HasMany("comments", func(comments *Relationship) {
					comments.Hidden("email").Skip(0)
				})
		}).
		BelongsTo("teams", func(teams *Relationship) {
			teams.Select("name")
		})

	clause := b.Query().Query[ScopeFrom]["users"]
	require.Contains(t, clause.HasMany, "posts")
	require.Contains(t, clause.HasMany["posts"].HasMany, "comments")
	assert.Equal(t, []string{"email"}, clause.HasMany["posts"].HasMany["comments"].Hidden)

	var buf bytes.Buffer
	require.NoError(t, EncodeIndent(&buf, b.Query()))

	g := goldie.New(t)
	g.Assert(t, "nested_joins", buf.Bytes())
}

func TestRejoinOverwrites(t *testing.T) {
	b := NewBuilder("users", nil).
		HasMany("posts", func(r *Relationship) { r.Where("a", OpEq, 1) }).
		HasMany("posts", func(r *Relationship) { r.Limit(3) })

	assert.Equal(t,
		`{"query":{"from":{"users":{"hasMany":{"posts":{"limit":3}}}}}}`,
		encodeCompact(t, b.Query()),
	)
}

func TestJoinWithNilConfigure(t *testing.T) {
	b := NewBuilder("users", nil).BelongsTo("teams", nil)
	assert.Equal(t,
		`{"query":{"from":{"users":{"belongsTo":{"teams":{}}}}}}`,
		encodeCompact(t, b.Query()),
	)
}

func TestTerminalActions(t *testing.T) {
	ctx := context.Background()

	tests := map[string]struct {
		run  func(b *Builder) error
		want string
	}{
		"delete": {
			run:  func(b *Builder) error { _, err := b.Delete(ctx); return err },
			want: `{"query":{"from":{"users":{"do":"delete"}}}}`,
		},
		"count": {
			run:  func(b *Builder) error { _, err := b.Count(ctx); return err },
			want: `{"query":{"from":{"users":{"do":"count"}}}}`,
		},
		"exists": {
			run:  func(b *Builder) error { _, err := b.Exists(ctx); return err },
			want: `{"query":{"from":{"users":{"do":"exists"}}}}`,
		},
		"fetchFirst": {
			run:  func(b *Builder) error { _, err := b.FetchFirst(ctx); return err },
			want: `{"query":{"from":{"users":{"do":"fetchFirst"}}}}`,
		},
		"update": {
			run: func(b *Builder) error {
				_, err := b.Update(ctx, map[string]any{"active": false})
				return err
			},
			want: `{"query":{"from":{"users":{"do":"update","set":{"active":false}}}}}`,
		},
		"list": {
			run:  func(b *Builder) error { _, err := b.List(ctx); return err },
			want: `{"query":{"from":{"users":{"do":"list"}}}}`,
		},
		"list by": {
			run:  func(b *Builder) error { _, err := b.List(ctx, "email"); return err },
			want: `{"query":{"from":{"users":{"do":"list","listBy":"email"}}}}`,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			sub := &recordingSubmitter{reply: json.RawMessage(`[]`)}
			require.NoError(t, tt.run(NewBuilder("users", sub)))
			assert.Equal(t, tt.want, string(sub.lastBody))
		})
	}
}

func TestListDecodesItems(t *testing.T) {
	sub := &recordingSubmitter{reply: json.RawMessage(`["a@x.io","b@x.io"]`)}

	emails, err := AsList[string](NewBuilder("users", sub).List(context.Background(), "email"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a@x.io", "b@x.io"}, emails)
}

func TestListRejectsNonArray(t *testing.T) {
	sub := &recordingSubmitter{reply: json.RawMessage(`{"a":1}`)}

	_, err := NewBuilder("users", sub).List(context.Background())
	require.Error(t, err)
	assert.True(t, fault.HasCode(err, fault.DecodeCode))
}

func TestSubmitErrorIsReturned(t *testing.T) {
	sub := &recordingSubmitter{err: fault.Remote("not found")}

	_, err := NewBuilder("users", sub).Fetch(context.Background())
	require.EqualError(t, err, "not found")
	assert.Equal(t, 1, sub.calls)
}

func TestInvalidOperatorValueStopsSubmission(t *testing.T) {
	sub := &recordingSubmitter{}

	b := NewBuilder("users", sub).
		Where("age", OpGt, "eighteen").
		Where("name", OpEq, "Donald")

	_, err := b.Fetch(context.Background())
	require.Error(t, err)
	assert.True(t, fault.HasCode(err, fault.BadInputCode))
	assert.Contains(t, err.Error(), `where "age"`)
	assert.Equal(t, 0, sub.calls)
}

func TestInvalidValueInsideJoinPropagates(t *testing.T) {
	b := NewBuilder("users", nil).HasMany("posts", func(r *Relationship) {
		r.BelongsTo("authors", func(a *Relationship) {
			a.Where("age", OpBetween, []int{1})
		})
	})

	require.Error(t, b.Err())
	assert.Contains(t, b.Err().Error(), `hasMany "posts"`)
	assert.Contains(t, b.Err().Error(), `belongsTo "authors"`)
}

func TestCloneIsIndependent(t *testing.T) {
	base := NewBuilder("users", nil).Where("active", OpEq, true).Limit(10)
	branch := base.Clone().Where("age", OpGt, 30).Limit(1)

	assert.Equal(t, `{"query":{"from":{"users":{"where":[["active","=",true]],"limit":10}}}}`, encodeCompact(t, base.Query()))
	assert.Equal(t, `{"query":{"from":{"users":{"where":[["active","=",true],["age",">",30]],"limit":1}}}}`, encodeCompact(t, branch.Query()))
}

func TestZeroLimitAndSkipAreSent(t *testing.T) {
	b := NewBuilder("users", nil).Limit(0).Skip(0)
	assert.Equal(t, `{"query":{"from":{"users":{"limit":0,"skip":0}}}}`, encodeCompact(t, b.Query()))
}

func TestNoSubmitter(t *testing.T) {
	_, err := NewBuilder("users", nil).Fetch(context.Background())
	assert.Error(t, err)
}
