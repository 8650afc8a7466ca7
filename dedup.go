package topicfy

import (
	"image"

	"github.com/corona10/goimagehash"
)

// dedupFilter drops the same artwork reached through different origins
// (a banner re-uploaded to a forum, a crawled og:image equal to the cover).
// The gate feeds it in harvest order from a single goroutine.
type dedupFilter struct {
	maxDistance int
	kept        []hashedImage
}

type hashedImage struct {
	url  string
	hash *goimagehash.ImageHash
}

// check returns the URL of a kept image within maxDistance of img. When there
// is none, img is kept and check returns false. Hash failures keep the image.
func (d *dedupFilter) check(img image.Image, url string) (string, bool) {
	hash, err := goimagehash.DifferenceHash(img)
	if err != nil {
		return "", false
	}
	for _, k := range d.kept {
		if dist, err := hash.Distance(k.hash); err == nil && dist < d.maxDistance {
			return k.url, true
		}
	}
	d.kept = append(d.kept, hashedImage{url: url, hash: hash})
	return "", false
}
