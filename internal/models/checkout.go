package models

// CheckoutSession is the subset of the payment provider's completed
// checkout session the order flow reads.
type CheckoutSession struct {
	ID              string            `json:"id"`
	Invoice         *string           `json:"invoice,omitempty"`
	AmountTotal     int64             `json:"amount_total"`
	Currency        string            `json:"currency"`
	PaymentStatus   string            `json:"payment_status"`
	CustomerDetails CustomerDetails   `json:"customer_details"`
	ShippingCost    *ShippingCost     `json:"shipping_cost,omitempty"`
	Metadata        map[string]string `json:"metadata"`
}

type CustomerDetails struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

type ShippingCost struct {
	AmountTotal int64 `json:"amount_total"`
}

// Checkout metadata keys written by the storefront when the session is created.
const (
	MetaFirstName      = "firstName"
	MetaLastName       = "lastName"
	MetaPhone          = "phone"
	MetaDeliveryMethod = "deliveryMethod"
	MetaPacketaPointID = "packetaPointId"
	MetaStreet         = "street"
	MetaCity           = "city"
	MetaPostalCode     = "postalCode"
	MetaCountry        = "country"
	MetaCartItems      = "items"
)
