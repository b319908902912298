package pubfile

import (
	"sort"

	"github.com/ekobi/goksi/ksierr"
)

// FindAtOrAfter returns the first publication record with PublicationTime
// >= t. The records are sorted by time here before searching; the order
// they have in the file is not relied on.
func (f *File) FindAtOrAfter(t uint64) (*PublicationRecord, error) {
	recs := append([]PublicationRecord(nil), f.PublicationRecs...)
	sort.Slice(recs, func(i, j int) bool { return recs[i].PublicationTime < recs[j].PublicationTime })
	idx := sort.Search(len(recs), func(i int) bool { return recs[i].PublicationTime >= t })
	if idx == len(recs) {
		return nil, ksierr.New(ksierr.InvalidArgument, "no publication at or after the requested time")
	}
	return &recs[idx], nil
}

// Latest returns the publication record with the greatest PublicationTime.
func (f *File) Latest() (*PublicationRecord, error) {
	if len(f.PublicationRecs) == 0 {
		return nil, ksierr.New(ksierr.InvalidState, "publications file is empty")
	}
	best := f.PublicationRecs[0]
	for _, r := range f.PublicationRecs[1:] {
		if r.PublicationTime > best.PublicationTime {
			best = r
		}
	}
	return &best, nil
}

// FindByString decodes s and looks up the matching publication record by
// (time, imprint) equality.
func (f *File) FindByString(s string) (*PublicationRecord, error) {
	t, im, err := DecodePublicationString(s)
	if err != nil {
		return nil, err
	}
	for i := range f.PublicationRecs {
		r := &f.PublicationRecs[i]
		if r.PublicationTime == t && r.PublishedHash.Equal(im) {
			return r, nil
		}
	}
	return nil, ksierr.New(ksierr.InvalidArgument, "publication string does not match any record in the file")
}
