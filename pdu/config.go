package pdu

import (
	"github.com/ekobi/goksi/hash"
	"github.com/ekobi/goksi/tlv"
)

// AggregatorConfig is the push-config payload a server may send
// unsolicited, independent of any specific request. Its sub-fields are
// modeled as named fields instead of an opaque blob (see DESIGN.md).
type AggregatorConfig struct {
	MaxLevel     uint64
	HasMaxLevel  bool
	MaxAggrDepth uint64
	HasMaxDepth  bool
	AggrAlgo     hash.Algorithm
	HasAlgo      bool
	AggrPeriodMs uint64
	HasPeriod    bool
	ParentURI    string
}

var aggregatorConfigTemplate = tlv.Tmpl(
	tlv.Element{
		Tag: TagAggrConfGlobalDepth, Kind: tlv.KindInt,
		Get: func(t interface{}) (interface{}, bool) {
			c := t.(*AggregatorConfig)
			if !c.HasMaxLevel {
				return nil, false
			}
			return c.MaxLevel, true
		},
		Set: func(t interface{}, v interface{}) error {
			c := t.(*AggregatorConfig)
			c.MaxLevel = v.(uint64)
			c.HasMaxLevel = true
			return nil
		},
	},
	tlv.Element{
		Tag: TagAggrConfMaxDepth, Kind: tlv.KindInt,
		Get: func(t interface{}) (interface{}, bool) {
			c := t.(*AggregatorConfig)
			if !c.HasMaxDepth {
				return nil, false
			}
			return c.MaxAggrDepth, true
		},
		Set: func(t interface{}, v interface{}) error {
			c := t.(*AggregatorConfig)
			c.MaxAggrDepth = v.(uint64)
			c.HasMaxDepth = true
			return nil
		},
	},
	tlv.Element{
		Tag: TagAggrConfAlgo, Kind: tlv.KindInt,
		Get: func(t interface{}) (interface{}, bool) {
			c := t.(*AggregatorConfig)
			if !c.HasAlgo {
				return nil, false
			}
			return uint64(c.AggrAlgo), true
		},
		Set: func(t interface{}, v interface{}) error {
			c := t.(*AggregatorConfig)
			c.AggrAlgo = hash.Algorithm(v.(uint64))
			c.HasAlgo = true
			return nil
		},
	},
	tlv.Element{
		Tag: TagAggrConfPeriod, Kind: tlv.KindInt,
		Get: func(t interface{}) (interface{}, bool) {
			c := t.(*AggregatorConfig)
			if !c.HasPeriod {
				return nil, false
			}
			return c.AggrPeriodMs, true
		},
		Set: func(t interface{}, v interface{}) error {
			c := t.(*AggregatorConfig)
			c.AggrPeriodMs = v.(uint64)
			c.HasPeriod = true
			return nil
		},
	},
	tlv.Element{
		Tag: TagAggrConfParentURI, Kind: tlv.KindUTF8,
		Get: func(t interface{}) (interface{}, bool) {
			c := t.(*AggregatorConfig)
			if c.ParentURI == "" {
				return nil, false
			}
			return c.ParentURI, true
		},
		Set: func(t interface{}, v interface{}) error { t.(*AggregatorConfig).ParentURI = v.(string); return nil },
	},
)

// EncodeAggregatorConfig serializes cfg as a TagAggrConf-tagged TLV.
func EncodeAggregatorConfig(cfg *AggregatorConfig) ([]byte, error) {
	children, err := tlv.Construct(aggregatorConfigTemplate, cfg)
	if err != nil {
		return nil, err
	}
	return tlv.NewComposite(TagAggrConf, false, false, children).Encode(), nil
}

// DecodeAggregatorConfig extracts an AggregatorConfig from a TagAggrConf
// TLV such as EncodeAggregatorConfig produces.
func DecodeAggregatorConfig(t *tlv.TLV) (*AggregatorConfig, error) {
	var cfg AggregatorConfig
	if _, err := tlv.Extract(aggregatorConfigTemplate, &cfg, t); err != nil {
		return nil, err
	}
	return &cfg, nil
}
