package kafka

import (
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBrokers(t *testing.T) {
	tests := []struct {
		name string
		list string
		want []string
	}{
		{name: "empty", list: "", want: nil},
		{name: "single", list: "localhost:9092", want: []string{"localhost:9092"}},
		{name: "trims blanks", list: " a:9092, ,b:9092 ", want: []string{"a:9092", "b:9092"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseBrokers(tt.list))
		})
	}
}

func TestCreateChannel_NoBrokers(t *testing.T) {
	_, _, err := CreateChannel(watermill.NopLogger{}, nil, "quasar")
	require.ErrorIs(t, err, ErrNoBrokers)
}
