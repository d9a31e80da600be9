package benchmark

import (
	"fmt"
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/internal/crawler/changedetect"
	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/internal/crawler/normalizer"
)

var sampleTexts = map[string]string{
	"short": "The old town of Tübingen sits on the Neckar river",
	"medium": `Tübingen is a traditional university town in central Baden-Württemberg.
        Its half-timbered houses, the castle Hohentübingen and the punts on the Neckar
        draw visitors all year round. The Eberhard Karls University was founded in 1477
        and today hosts research in machine learning, neuroscience and medicine.`,
	"long": strings.Repeat(`Visitors exploring the Altstadt find narrow lanes leading up to the
        market square, the town hall with its astronomical clock and the collegiate church.
        Cafes and restaurants line the riverbank, and the botanical garden and museums of
        the university are open to the public most days of the week. `, 20),
}

var norm = normalizer.New(normalizer.Options{Language: "english"})

func BenchmarkNormalize(b *testing.B) {
	for name, text := range sampleTexts {
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(text)))
			for b.Loop() {
				norm.Normalize(text)
			}
		})
	}
}

func BenchmarkNormalizeParallel(b *testing.B) {
	text := sampleTexts["medium"]
	b.ReportAllocs()
	b.SetBytes(int64(len(text)))
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			norm.Normalize(text)
		}
	})
}

func BenchmarkSimHash(b *testing.B) {
	sizes := []int{100, 1000, 10000}
	base := sampleTexts["long"]
	for _, size := range sizes {
		text := base[:min(size, len(base))]
		b.Run(fmt.Sprintf("bytes_%d", len(text)), func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(text)))
			for b.Loop() {
				changedetect.SimHash(text)
			}
		})
	}
}
