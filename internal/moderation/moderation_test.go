package moderation

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilter_Check(t *testing.T) {
	f := New([]string{"darn", "heck", "gosh darn it"})

	tests := []struct {
		name string
		text string
		want []string
	}{
		{"clean", "Once upon a time there was a quiet village.", nil},
		{"empty", "", nil},
		{"single word", "Well, darn.", []string{"flagged word: darn"}},
		{"case folded", "DARN the rain", []string{"flagged word: darn"}},
		{"diacritics stripped", "hëck no", []string{"flagged word: heck"}},
		{"look-alike characters", "h3ck and d@rn", []string{"flagged word: heck", "flagged word: darn"}},
		{"duplicates reported once", "darn darn darn", []string{"flagged word: darn"}},
		{"substring is not a match", "darned heckling", nil},
		{"phrase", "oh gosh darn it all", []string{"flagged word: gosh darn it", "flagged word: darn"}},
		{"phrase across punctuation", "gosh... darn, it!", []string{"flagged word: gosh darn it", "flagged word: darn"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, f.Check(tt.text))
		})
	}
}

func TestFilter_EmptyList(t *testing.T) {
	f := New(nil)
	assert.Nil(t, f.Check("anything at all"))
}

func TestDefault(t *testing.T) {
	f := Default()

	assert.Nil(t, f.Check("The dragon slept beneath the mountain."))
	assert.NotEmpty(t, f.Check("what a load of bullshit"))
	assert.Equal(t, []string{"flagged word: son of a bitch", "flagged word: bitch"}, f.Check("Son of a bitch!"))
}

func TestParseList(t *testing.T) {
	list := "# comment\n\nfoo\n  bar baz  \n#another\n"
	require.Equal(t, []string{"foo", "bar baz"}, ParseList(list))
}

func TestFilter_ConcurrentUse(t *testing.T) {
	f := Default()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				assert.Len(t, f.Check("shit and Shit and SHIT"), 1)
			}
		}()
	}
	wg.Wait()
}
