package domain

// TopicRegistry 注册表事件主题
const TopicRegistry = "tradingassistant.registry"

const (
	InstrumentCreatedEventType = "registry.instrument_created"
	ListingCreatedEventType    = "registry.listing_created"
)

// InstrumentCreatedEvent 金融工具创建事件
type InstrumentCreatedEvent struct {
	Instrument *Instrument `json:"instrument"`
	CreatedBy  string      `json:"created_by"`
}

// ListingCreatedEvent 挂牌创建事件
type ListingCreatedEvent struct {
	Listing   *Listing `json:"listing"`
	CreatedBy string   `json:"created_by"`
}
