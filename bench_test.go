package flowtrack

import (
	"testing"

	"github.com/brianvoe/gofakeit/v6"
)

func BenchmarkChain(b *testing.B) {
	b.Run("allocate-free", func(b *testing.B) {
		c := NewChain(1024)
		for i := 0; i < b.N; i++ {
			slot, _ := c.Allocate(int64(i))
			c.Free(slot)
		}
	})

	b.Run("touch", func(b *testing.B) {
		c := NewChain(1024)
		for i := 0; i < 1024; i++ {
			c.Allocate(int64(i))
		}
		for i := 0; i < b.N; i++ {
			c.Touch(uint32(i&1023), int64(i))
		}
	})

	b.Run("expire", func(b *testing.B) {
		c := NewChain(1024)
		for i := 0; i < b.N; i++ {
			_, err := c.Allocate(int64(i))
			if err != nil {
				b.Fatal(err)
			}
			c.ExpireOne(int64(i), 512)
		}
	})
}

func BenchmarkTracker(b *testing.B) {
	faker := gofakeit.New(1)
	flows := make([]Flow, 4096)
	for i := range flows {
		flows[i] = randFlow(faker)
	}

	b.Run("insert", func(b *testing.B) {
		tr := NewTracker[Flow](len(flows))
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			tr.Insert(flows[i&4095], int64(i))
		}
	})

	b.Run("contains", func(b *testing.B) {
		tr := NewTracker[Flow](len(flows))
		for i, f := range flows {
			tr.Insert(f, int64(i))
		}
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			tr.Contains(flows[i&4095])
		}
	})

	b.Run("touch", func(b *testing.B) {
		tr := NewTracker[Flow](len(flows))
		for i, f := range flows {
			tr.Insert(f, int64(i))
		}
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			tr.Touch(flows[i&4095], int64(i))
		}
	})
}
