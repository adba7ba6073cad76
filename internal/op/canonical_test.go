package op

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonical_SortedKeys(t *testing.T) {
	b, err := MarshalCanonical(map[string]any{
		"zebra": int64(1),
		"alpha": int64(2),
		"mid":   map[string]any{"b": true, "a": "x"},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":2,"mid":{"a":"x","b":true},"zebra":1}`, string(b))
}

func TestMarshalCanonical_NoHTMLEscaping(t *testing.T) {
	b, err := MarshalCanonical("a<b&c>d")
	require.NoError(t, err)
	assert.Equal(t, `"a<b&c>d"`, string(b))
}

func TestMarshalCanonical_ForbiddenValues(t *testing.T) {
	_, err := MarshalCanonical(nil)
	assert.Error(t, err, "null is forbidden")

	_, err = MarshalCanonical(1.25)
	assert.Error(t, err, "floats are forbidden")

	_, err = MarshalCanonical(map[string]any{"x": nil})
	assert.Error(t, err, "nested null is forbidden")
}

func TestMarshalCanonical_Deterministic(t *testing.T) {
	m := map[string]any{"k1": "v", "k2": int64(9), "k3": []any{int64(1), "two"}}
	first, err := MarshalCanonical(m)
	require.NoError(t, err)
	second, err := MarshalCanonical(m)
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))
}

func TestMarshalOperation_Variants(t *testing.T) {
	cases := []struct {
		name string
		o    Operation
		want string
	}{
		{
			name: "propose",
			o:    Operation{Sender: "alice", Payload: Propose{Proposal: "p-1"}},
			want: `{"kind":"propose","proposal":"p-1","sender":"alice"}`,
		},
		{
			name: "vote with advance",
			o:    Operation{Sender: "bob", Advance: 8, Payload: Vote{Proposal: "p-1", Ballot: BallotYay}},
			want: `{"advance":8,"ballot":"yay","kind":"vote","proposal":"p-1","sender":"bob"}`,
		},
		{
			name: "freeze",
			o:    Operation{Sender: "carol", Payload: Freeze{Amount: 25}},
			want: `{"amount":25,"kind":"freeze","sender":"carol"}`,
		},
		{
			name: "transfer",
			o:    Operation{Sender: "guardian", Payload: Transfer{To: "token", Amount: 5}},
			want: `{"amount":5,"kind":"transfer","sender":"guardian","to":"token"}`,
		},
		{
			name: "custom",
			o:    Operation{Sender: "dave", Payload: Custom{Entrypoint: "touch"}},
			want: `{"entrypoint":"touch","kind":"custom","sender":"dave"}`,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b, err := MarshalOperation(tc.o)
			require.NoError(t, err)
			assert.Equal(t, tc.want, string(b))
		})
	}
}
