package remote

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/erp/customerdir/internal/domain/customer"
)

var errMalformedBody = errors.New("malformed response body")

// payload returns the data of a success envelope, or the whole body when it is not wrapped.
// An envelope with "success":false is reported as a server failure. A null body
// or an envelope without a data key is malformed; an explicit "data":null is kept
// because Go servers encode an empty nil slice that way.
func payload(status int, body []byte) (gjson.Result, error) {
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, malformedFailure(status, errMalformedBody)
	}
	root := gjson.ParseBytes(body)
	if root.Type == gjson.Null {
		return gjson.Result{}, malformedFailure(status, fmt.Errorf("%w: null body", errMalformedBody))
	}
	if !root.IsObject() {
		return root, nil
	}

	success := root.Get("success")
	if !success.Exists() {
		return root, nil
	}
	if !success.Bool() {
		f := serverFailure(status, body)
		f.Code = CodeBadResponse
		return gjson.Result{}, f
	}
	data := root.Get("data")
	if !data.Exists() {
		return gjson.Result{}, malformedFailure(status, fmt.Errorf("%w: success envelope without data", errMalformedBody))
	}
	return data, nil
}

func decodeList(status int, body []byte) ([]customer.Record, error) {
	data, err := payload(status, body)
	if err != nil {
		return nil, err
	}
	if data.Type == gjson.Null { // "data":null
		return []customer.Record{}, nil
	}
	if !data.IsArray() {
		return nil, malformedFailure(status, fmt.Errorf("%w: expected a customer list", errMalformedBody))
	}

	records := make([]customer.Record, 0, len(data.Array()))
	if err := json.Unmarshal([]byte(data.Raw), &records); err != nil {
		return nil, malformedFailure(status, err)
	}
	return records, nil
}

func decodeRecord(status int, body []byte) (customer.Record, error) {
	data, err := payload(status, body)
	if err != nil {
		return customer.Record{}, err
	}
	if !data.IsObject() {
		return customer.Record{}, malformedFailure(status, fmt.Errorf("%w: expected a customer", errMalformedBody))
	}

	var record customer.Record
	if err := json.Unmarshal([]byte(data.Raw), &record); err != nil {
		return customer.Record{}, malformedFailure(status, err)
	}
	return record, nil
}
