// Package pdu defines the wire PDUs exchanged with an aggregator or
// extender service: TLV tag assignments and the tlv.Template bindings that
// turn package signature's Go types into wire bytes and back.
package pdu

// Tag assignments for sub-fields beyond the top-level PDU tags are
// recorded as an Open Question resolution in DESIGN.md.
const (
	TagHeader           uint16 = 0x01
	TagHeaderInstanceID uint16 = 0x05
	TagHeaderMessageID  uint16 = 0x06
	TagHeaderClientID   uint16 = 0x07

	TagPDUAggregation  uint16 = 0x0200
	TagAggrRequest     uint16 = 0x0201
	TagAggrResponse    uint16 = 0x0202
	TagAggrRequestID   uint16 = 0x02
	TagAggrRequestHash uint16 = 0x03
	TagAggrReqLevel    uint16 = 0x04
	TagAggrError       uint16 = 0x05
	TagAggrErrorMsg    uint16 = 0x06
	TagAggrConf        uint16 = 0x10
	TagAggrReqAck      uint16 = 0x12
	TagAggrMAC         uint16 = 0x1f

	TagAggrConfGlobalDepth uint16 = 0x01
	TagAggrConfMaxDepth    uint16 = 0x02
	TagAggrConfAlgo        uint16 = 0x03
	TagAggrConfPeriod      uint16 = 0x04
	TagAggrConfParentURI   uint16 = 0x05

	// Extend-side tags follow the same numbering convention one block up,
	// since the original header only enumerates the aggregation side.
	TagPDUExtend      uint16 = 0x0300
	TagExtendRequest  uint16 = 0x0301
	TagExtendResponse uint16 = 0x0302
	TagExtRequestID   uint16 = 0x02
	TagExtAggrTime    uint16 = 0x03
	TagExtPubTime     uint16 = 0x04
	TagExtError       uint16 = 0x05
	TagExtErrorMsg    uint16 = 0x06
	TagExtMAC         uint16 = 0x1f

	TagSignature uint16 = 0x0800

	// Signature sub-structure tags (invented above the published PDU
	// tags, consistent numbering but not directly sourced from the
	// 10-file original_source excerpt - see DESIGN.md).
	TagAggrChain      uint16 = 0x0801
	TagAggrChainTime  uint16 = 0x02
	TagAggrChainIndex uint16 = 0x03
	TagAggrChainInput uint16 = 0x05
	TagAggrChainAlgo  uint16 = 0x06
	// TagAggrChainLink covers every link of a chain, in document order;
	// the TLV's own Forward bit carries the link's Direction (set =
	// Right, clear = Left) so a single ordered element can hold a chain
	// whose links mix directions - keeping one list-cardinality Element
	// per logical sequence instead of splitting it by direction, which
	// would scramble canonical encode order across a per-tag template.
	TagAggrChainLink       uint16 = 0x07
	TagAggrChainInputLevel uint16 = 0x08
	TagLinkLevelC          uint16 = 0x04
	TagLinkSibling         uint16 = 0x06
	TagLinkMeta            uint16 = 0x09
	TagMetaClientID        uint16 = 0x01
	TagMetaMachineID       uint16 = 0x02
	TagMetaSeqNr           uint16 = 0x03
	TagMetaReqTime         uint16 = 0x04

	TagCalChain     uint16 = 0x0802
	TagCalChainInp  uint16 = 0x01
	TagCalChainPubT uint16 = 0x02
	TagCalChainAggT uint16 = 0x03
	// Same Forward-bit-as-direction convention as TagAggrChainLink.
	TagCalChainLink   uint16 = 0x07
	TagCalLinkSibling uint16 = 0x01

	TagCalAuthRec    uint16 = 0x0803
	TagCalAuthPubT   uint16 = 0x02
	TagCalAuthHash   uint16 = 0x05
	TagCalAuthSigDER uint16 = 0x06

	TagPubRecord  uint16 = 0x0804
	TagPubRecTime uint16 = 0x02
	TagPubRecHash uint16 = 0x04
	TagPubRecRef  uint16 = 0x09
	TagPubRecURI  uint16 = 0x0a

	TagRFC3161Rec           uint16 = 0x0805
	TagRFC3161AggrTime      uint16 = 0x02
	TagRFC3161ChainIndex    uint16 = 0x03
	TagRFC3161InputAlgo     uint16 = 0x04
	TagRFC3161TstInfoPrefix uint16 = 0x05
	TagRFC3161TstInfoSuffix uint16 = 0x06
	TagRFC3161TstInfoAlgo   uint16 = 0x07
	TagRFC3161SigAttrPrefix uint16 = 0x08
	TagRFC3161SigAttrSuffix uint16 = 0x09
	TagRFC3161SigAttrAlgo   uint16 = 0x0a
)
