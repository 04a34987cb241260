package cache_test

import (
	"math/rand/v2"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/csim/cache"
)

var _ = Describe("DirectoryCache", func() {
	It("should reject block offsets the directory cannot size", func() {
		_, err := cache.NewDirectoryCache(cache.Geometry{LinesPerSet: 1, BlockOffsetBits: 63})
		Expect(err).To(MatchError(cache.ErrInvalidGeometry))
	})

	It("should thrash a single-line cache", func() {
		d, err := cache.NewDirectoryCache(cache.Geometry{LinesPerSet: 1})
		Expect(err).NotTo(HaveOccurred())

		runAll(d, 0x0, 0x1, 0x0, 0x1)

		Expect(d.Stats()).To(Equal(cache.Statistics{
			Accesses: 4, Hits: 0, Misses: 4, Evictions: 3,
		}))
	})

	It("should report the evicted tag", func() {
		d, err := cache.NewDirectoryCache(cache.Geometry{SetIndexBits: 2, LinesPerSet: 2, BlockOffsetBits: 4})
		Expect(err).NotTo(HaveOccurred())

		runAll(d, 0x000, 0x040, 0x000)
		result := d.Access(0x080)

		Expect(result.Outcome).To(Equal(cache.MissWithEviction))
		Expect(result.EvictedTag).To(Equal(uint64(0x040 >> 6)))
		Expect(result.Address).To(Equal(cache.Address{Tag: 0x080 >> 6}))
	})

	It("should clear state on reset", func() {
		d, err := cache.NewDirectoryCache(cache.Geometry{SetIndexBits: 1, LinesPerSet: 2})
		Expect(err).NotTo(HaveOccurred())

		runAll(d, 0x0, 0x0)
		d.Reset()

		Expect(d.Stats()).To(Equal(cache.Statistics{}))
		Expect(d.Access(0x0).Outcome).To(Equal(cache.Miss))
	})

	DescribeTable("should agree with Cache on random traces",
		func(s uint, e int, b uint, span uint64) {
			g := cache.Geometry{SetIndexBits: s, LinesPerSet: e, BlockOffsetBits: b}
			lru, err := cache.New(g)
			Expect(err).NotTo(HaveOccurred())
			dir, err := cache.NewDirectoryCache(g)
			Expect(err).NotTo(HaveOccurred())

			r := rand.New(rand.NewPCG(uint64(s), uint64(e)))
			for i := 0; i < 5000; i++ {
				addr := r.Uint64N(span)
				want := lru.Access(addr)
				got := dir.Access(addr)
				Expect(got).To(Equal(want), "access %d address %#x", i, addr)
			}

			Expect(dir.Stats()).To(Equal(lru.Stats()))
		},
		Entry("direct-mapped", uint(4), 1, uint(4), uint64(4096)),
		Entry("2-way", uint(2), 2, uint(2), uint64(512)),
		Entry("4-way", uint(3), 4, uint(5), uint64(16384)),
		Entry("fully associative", uint(0), 8, uint(3), uint64(1024)),
		Entry("wide blocks", uint(1), 3, uint(12), uint64(1<<16)),
	)
})
