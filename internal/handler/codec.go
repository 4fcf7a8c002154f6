package handler

import (
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/tradeforce/promo-engine/internal/domain/promotion"
)

// The API speaks the back-office envelope: {success, message, data, summary}.
// Decimals stay exact inside the engine; they degrade to float64 only here,
// at the JSON boundary.

func decodeCalculateRequest(data []byte) (promotion.CalculateRequest, error) {
	var req promotion.CalculateRequest
	d := jx.DecodeBytes(data)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "customer_id":
			v, err := d.Int64()
			if err != nil {
				return errors.Wrap(err, "customer_id")
			}
			req.CustomerID = v
			return nil
		case "order_lines":
			return d.Arr(func(d *jx.Decoder) error {
				line, err := decodeOrderLine(d)
				if err != nil {
					return err
				}
				req.Lines = append(req.Lines, line)
				return nil
			})
		case "depot_id":
			return decodeOptInt64(d, &req.DepotID)
		case "salesman_id":
			return decodeOptInt64(d, &req.SalesmanID)
		case "route_id":
			return decodeOptInt64(d, &req.RouteID)
		case "order_date":
			s, err := d.Str()
			if err != nil {
				return errors.Wrap(err, "order_date")
			}
			t, err := parseDate(s)
			if err != nil {
				return errors.Wrap(err, "order_date")
			}
			req.Date = t
			return nil
		case "platform":
			s, err := d.Str()
			if err != nil {
				return errors.Wrap(err, "platform")
			}
			req.Platform = s
			return nil
		default:
			return d.Skip()
		}
	})
	return req, err
}

func decodeOrderLine(d *jx.Decoder) (promotion.OrderLine, error) {
	var line promotion.OrderLine
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "product_id":
			return decodeOptInt64(d, &line.ProductID)
		case "category_id":
			return decodeOptInt64(d, &line.CategoryID)
		case "product_group":
			s, err := d.Str()
			if err != nil {
				return errors.Wrap(err, "product_group")
			}
			line.ProductGroup = s
			return nil
		case "quantity":
			return decodeDecimal(d, "quantity", &line.Quantity)
		case "unit_price":
			return decodeDecimal(d, "unit_price", &line.UnitPrice)
		default:
			return d.Skip()
		}
	})
	return line, err
}

func decodeApplyRequest(data []byte) (promotion.ApplyRequest, error) {
	var req promotion.ApplyRequest
	d := jx.DecodeBytes(data)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "promotion_id":
			v, err := d.Int64()
			if err != nil {
				return errors.Wrap(err, "promotion_id")
			}
			req.PromotionID = v
			return nil
		case "order_id":
			return decodeOptInt64(d, &req.OrderID)
		case "customer_id":
			v, err := d.Int64()
			if err != nil {
				return errors.Wrap(err, "customer_id")
			}
			req.CustomerID = v
			return nil
		case "discount_amount":
			return decodeDecimal(d, "discount_amount", &req.DiscountAmount)
		case "free_products":
			return d.Arr(func(d *jx.Decoder) error {
				fp, err := decodeFreeProduct(d)
				if err != nil {
					return err
				}
				req.FreeProducts = append(req.FreeProducts, fp)
				return nil
			})
		default:
			return d.Skip()
		}
	})
	return req, err
}

func decodeFreeProduct(d *jx.Decoder) (promotion.FreeProduct, error) {
	var fp promotion.FreeProduct
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "product_id":
			v, err := d.Int64()
			if err != nil {
				return errors.Wrap(err, "product_id")
			}
			fp.ProductID = v
			return nil
		case "product_name":
			s, err := d.Str()
			if err != nil {
				return errors.Wrap(err, "product_name")
			}
			fp.ProductName = s
			return nil
		case "product_code":
			s, err := d.Str()
			if err != nil {
				return errors.Wrap(err, "product_code")
			}
			fp.ProductCode = s
			return nil
		case "quantity":
			return decodeDecimal(d, "quantity", &fp.Quantity)
		case "gift_limit":
			v, err := d.Int()
			if err != nil {
				return errors.Wrap(err, "gift_limit")
			}
			fp.GiftLimit = v
			return nil
		default:
			return d.Skip()
		}
	})
	return fp, err
}

func decodeOptInt64(d *jx.Decoder, dst **int64) error {
	if d.Next() == jx.Null {
		return d.Null()
	}
	v, err := d.Int64()
	if err != nil {
		return err
	}
	*dst = &v
	return nil
}

func decodeDecimal(d *jx.Decoder, field string, dst *decimal.Decimal) error {
	n, err := d.Num()
	if err != nil {
		return errors.Wrap(err, field)
	}
	s := string(n)
	// jx.Num keeps quoted ("string") numbers verbatim.
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return errors.Wrap(err, field)
	}
	*dst = v
	return nil
}

// parseDate accepts full RFC 3339 timestamps and bare ISO dates.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}

func encodeCalculateResult(res *promotion.CalculateResult) []byte {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("success")
	e.Bool(true)
	e.FieldStart("message")
	e.Str("eligible promotions calculated")
	e.FieldStart("data")
	e.ArrStart()
	for i := range res.Eligible {
		encodeEligible(&e, &res.Eligible[i])
	}
	e.ArrEnd()
	e.FieldStart("summary")
	e.ObjStart()
	e.FieldStart("total_eligible")
	e.Int(res.Summary.TotalEligible)
	e.FieldStart("total_discount")
	e.Float64(res.Summary.TotalDiscount.InexactFloat64())
	e.ObjEnd()
	e.ObjEnd()
	return e.Bytes()
}

func encodeEligible(e *jx.Encoder, el *promotion.Eligible) {
	e.ObjStart()
	e.FieldStart("promotion_id")
	e.Int64(el.PromotionID)
	e.FieldStart("promotion_name")
	e.Str(el.PromotionName)
	e.FieldStart("promotion_code")
	e.Str(el.PromotionCode)
	e.FieldStart("level_number")
	e.Int(el.LevelNumber)
	e.FieldStart("discount_type")
	e.Str(string(el.DiscountType))
	e.FieldStart("discount_amount")
	e.Float64(el.DiscountAmount.InexactFloat64())
	e.FieldStart("free_products")
	encodeFreeProducts(e, el.FreeProducts)
	e.FieldStart("qualified_quantity")
	e.Float64(el.QualifiedQuantity.InexactFloat64())
	e.FieldStart("qualified_value")
	e.Float64(el.QualifiedValue.InexactFloat64())
	e.FieldStart("threshold_met")
	e.Float64(el.QualifiedValue.InexactFloat64())
	e.ObjEnd()
}

func encodeFreeProducts(e *jx.Encoder, free []promotion.FreeProduct) {
	e.ArrStart()
	for _, fp := range free {
		e.ObjStart()
		e.FieldStart("product_id")
		e.Int64(fp.ProductID)
		e.FieldStart("product_name")
		e.Str(fp.ProductName)
		e.FieldStart("product_code")
		e.Str(fp.ProductCode)
		e.FieldStart("quantity")
		e.Float64(fp.Quantity.InexactFloat64())
		e.FieldStart("gift_limit")
		e.Int(fp.GiftLimit)
		e.ObjEnd()
	}
	e.ArrEnd()
}

func encodeApplyResult(res *promotion.ApplyResult) []byte {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("success")
	e.Bool(true)
	e.FieldStart("message")
	e.Str("promotion applied")
	e.FieldStart("data")
	e.ObjStart()
	e.FieldStart("promotion_id")
	e.Int64(res.PromotionID)
	e.FieldStart("order_id")
	if res.OrderID != nil {
		e.Int64(*res.OrderID)
	} else {
		e.Null()
	}
	e.FieldStart("customer_id")
	e.Int64(res.CustomerID)
	e.FieldStart("discount_amount")
	e.Float64(res.DiscountAmount.InexactFloat64())
	e.FieldStart("free_products")
	encodeFreeProducts(&e, res.FreeProducts)
	e.FieldStart("applied_at")
	e.Str(res.AppliedAt.UTC().Format(time.RFC3339))
	e.ObjEnd()
	e.ObjEnd()
	return e.Bytes()
}

func encodePromotionList(promos []promotion.Promotion) []byte {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("success")
	e.Bool(true)
	e.FieldStart("message")
	e.Str("active promotions")
	e.FieldStart("data")
	e.ArrStart()
	for i := range promos {
		p := &promos[i]
		e.ObjStart()
		e.FieldStart("id")
		e.Int64(p.ID)
		e.FieldStart("code")
		e.Str(p.Code)
		e.FieldStart("name")
		e.Str(p.Name)
		e.FieldStart("start_date")
		e.Str(p.StartDate.Format("2006-01-02"))
		e.FieldStart("end_date")
		e.Str(p.EndDate.Format("2006-01-02"))
		e.ObjEnd()
	}
	e.ArrEnd()
	e.ObjEnd()
	return e.Bytes()
}

func writeJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("success")
	e.Bool(false)
	e.FieldStart("message")
	e.Str(message)
	e.ObjEnd()
	writeJSON(w, status, e.Bytes())
}
