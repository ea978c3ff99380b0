package layout

import "testing"

func TestIndex(t *testing.T) {
	cases := []struct {
		s    Strip
		pos  int
		want int
	}{
		{Strip{Length: 5}, 0, 0},
		{Strip{Length: 5}, 4, 4},
		{Strip{Length: 5, Reverse: true}, 0, 4},
		{Strip{Length: 5, Reverse: true}, 4, 0},
		{Strip{Length: 5, Offset: 2}, 0, 2},
		{Strip{Length: 5, Offset: 2}, 4, 1},
		{Strip{Length: 5, Offset: -1}, 0, 4},
		{Strip{Length: 5, Offset: 1, Reverse: true}, 0, 3},
		{Strip{}, 3, 0},
	}
	for _, c := range cases {
		if got := c.s.Index(c.pos); got != c.want {
			t.Fatalf("%+v.Index(%d) = %d, want %d", c.s, c.pos, got, c.want)
		}
	}
}

func TestIndexIsPermutation(t *testing.T) {
	for _, s := range []Strip{{Length: 7}, {Length: 7, Reverse: true}, {Length: 7, Offset: 10, Reverse: true}} {
		seen := map[int]bool{}
		for pos := 0; pos < s.Count(); pos++ {
			i := s.Index(pos)
			if i < 0 || i >= s.Count() || seen[i] {
				t.Fatalf("%+v: bad index %d for %d", s, i, pos)
			}
			seen[i] = true
		}
	}
}

func TestApply(t *testing.T) {
	src := []int{10, 11, 12, 13}
	dst := make([]int, 4)
	Apply(Strip{Length: 4, Reverse: true}, dst, src)
	want := []int{13, 12, 11, 10}
	for i := range want {
		if dst[i] != want[i] {
			t.Fatalf("dst = %v, want %v", dst, want)
		}
	}

	Apply(Strip{Length: 4, Offset: 4}, dst, src)
	if dst[0] != 10 || dst[3] != 13 {
		t.Fatalf("identity apply = %v", dst)
	}
}
