package assets

import (
	"net/url"
	"strings"
)

// SignedDeliveryPath is the route that redirects to a freshly signed object URL.
const SignedDeliveryPath = "/v1/storage/signed"

// DeliveryLinks builds and recognizes the service's own signed-delivery URLs,
// used as canonical URLs for objects in private buckets.
type DeliveryLinks struct {
	base *url.URL
}

func NewDeliveryLinks(publicBaseURL string) (DeliveryLinks, error) {
	base, err := url.Parse(strings.TrimRight(strings.TrimSpace(publicBaseURL), "/"))
	if err != nil {
		return DeliveryLinks{}, err
	}
	return DeliveryLinks{base: base}, nil
}

func (l DeliveryLinks) URL(objectKey string) string {
	u := *l.base
	u.Path = strings.TrimRight(u.Path, "/") + SignedDeliveryPath
	u.RawQuery = url.Values{"key": []string{objectKey}}.Encode()
	return u.String()
}

// ObjectKey extracts the object key when raw is a delivery link issued by
// this service.
func (l DeliveryLinks) ObjectKey(raw string) (string, bool) {
	if l.base == nil {
		return "", false
	}
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", false
	}
	if !strings.EqualFold(u.Scheme, l.base.Scheme) || !strings.EqualFold(u.Host, l.base.Host) {
		return "", false
	}
	if u.Path != strings.TrimRight(l.base.Path, "/")+SignedDeliveryPath {
		return "", false
	}
	key := u.Query().Get("key")
	return key, key != ""
}
