package crdt

import (
	"encoding/json"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOperationID(t *testing.T) {
	id, err := ParseOperationID("42@site-7")
	require.NoError(t, err)
	assert.Equal(t, OperationID{Seq: 42, Site: "site-7"}, id)
	assert.Equal(t, "42@site-7", id.String())

	// only the first '@' separates the counter
	id, err = ParseOperationID("3@a@b")
	require.NoError(t, err)
	assert.Equal(t, "a@b", id.Site)

	for _, bad := range []string{"", "@", "7", "7@", "@a", "x@a", "-1@a", "0@a", "1.5@a"} {
		_, err := ParseOperationID(bad)
		assert.ErrorIs(t, err, ErrMalformedID, bad)
	}
}

func TestOperationID_CompareIsNumeric(t *testing.T) {
	nine := OperationID{Seq: 9, Site: "A"}
	ten := OperationID{Seq: 10, Site: "A"}

	// "9@A" > "10@A" as text; the counter must be compared as a number.
	require.Greater(t, nine.String(), ten.String())
	assert.True(t, ten.Less(nine))
	assert.False(t, nine.Less(ten))
	assert.Equal(t, 0, nine.Compare(nine))

	a := OperationID{Seq: 5, Site: "A"}
	b := OperationID{Seq: 5, Site: "B"}
	assert.True(t, a.Less(b))
	assert.Equal(t, -b.Compare(a), a.Compare(b))
}

func TestOperationID_CompareIsTotal(t *testing.T) {
	ids := []OperationID{
		{Seq: 1, Site: "b"}, {Seq: 100, Site: "a"}, {Seq: 11, Site: "a"},
		{Seq: 2, Site: "a"}, {Seq: 1, Site: "a"}, {Seq: 11, Site: "c"},
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })

	want := []OperationID{
		{Seq: 100, Site: "a"}, {Seq: 11, Site: "a"}, {Seq: 11, Site: "c"},
		{Seq: 2, Site: "a"}, {Seq: 1, Site: "a"}, {Seq: 1, Site: "b"},
	}
	assert.Equal(t, want, ids)
}

func TestOperationID_JSON(t *testing.T) {
	type holder struct {
		ID     OperationID  `json:"id"`
		Origin *OperationID `json:"origin"`
	}

	data, err := json.Marshal(holder{ID: OperationID{Seq: 12, Site: "s"}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"12@s","origin":null}`, string(data))

	var h holder
	require.NoError(t, json.Unmarshal([]byte(`{"id":"3@x","origin":"2@y"}`), &h))
	assert.Equal(t, OperationID{Seq: 3, Site: "x"}, h.ID)
	require.NotNil(t, h.Origin)
	assert.Equal(t, OperationID{Seq: 2, Site: "y"}, *h.Origin)

	assert.Error(t, json.Unmarshal([]byte(`{"id":"nope"}`), &h))
}

func TestGenerator(t *testing.T) {
	g := NewGenerator("s1")
	first := g.Next()
	second := g.Next()
	assert.Equal(t, OperationID{Seq: 1, Site: "s1"}, first)
	assert.Equal(t, OperationID{Seq: 2, Site: "s1"}, second)

	g.Observe(OperationID{Seq: 40, Site: "s2"})
	third := g.Next()
	assert.Equal(t, uint64(41), third.Seq)
	assert.True(t, third.Less(OperationID{Seq: 40, Site: "s2"}))

	// observing an older id never moves the counter back
	g.Observe(OperationID{Seq: 3, Site: "s3"})
	assert.Equal(t, uint64(42), g.Next().Seq)
}
