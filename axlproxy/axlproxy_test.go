package axlproxy

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestEnvelope(t *testing.T) {
	Convey("CriteriaFrom", t, func() {
		Convey("keeps every known criterion in envelope order", func() {
			c, err := CriteriaFrom(url.Values{"devicePoolName": {"DP_HQ"}, "name": {"SEP%"}, "color": {"blue"}})
			So(err, ShouldBeNil)
			So(c, ShouldResemble, []Criterion{{Name: "name", Value: "SEP%"}, {Name: "devicePoolName", Value: "DP_HQ"}})
		})

		Convey("requires at least one", func() {
			_, err := CriteriaFrom(url.Values{"color": {"blue"}})
			So(err, ShouldEqual, ErrNoCriteria)
		})
	})

	Convey("ListPhoneEnvelope", t, func() {
		env := string(ListPhoneEnvelope("12.5", []Criterion{{Name: "name", Value: "SEP%"}, {Name: "description", Value: "<Lobby & Hall>"}}))
		So(env, ShouldStartWith, `<soapenv:Envelope xmlns:soapenv="http://schemas.xmlsoap.org/soap/envelope/" xmlns:ns="http://www.cisco.com/AXL/API/12.5">`)
		So(env, ShouldContainSubstring, "<searchCriteria><name>SEP%</name><description>&lt;Lobby &amp; Hall&gt;</description></searchCriteria>")
		So(env, ShouldContainSubstring, "<returnedTags><name/><description/><ownerUserName/>")
		So(env, ShouldEndWith, "</ns:listPhone></soapenv:Body></soapenv:Envelope>")
	})

	Convey("GetPhoneEnvelope", t, func() {
		env := string(GetPhoneEnvelope("14.0", "SEP0011AABBCCDD"))
		So(env, ShouldContainSubstring, "API/14.0")
		So(env, ShouldContainSubstring, "<ns:getPhone><name>SEP0011AABBCCDD</name><returnedTags>")
	})
}

func TestClient(t *testing.T) {
	Convey("Given an AXL endpoint", t, func() {
		var got *http.Request
		var body string
		upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got = r
			b, _ := io.ReadAll(r.Body)
			body = string(b)
			w.Header().Set("Content-Type", "text/xml")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("<return><phone/></return>"))
		}))
		Reset(upstream.Close)

		Convey("NewClient needs credentials", func() {
			_, err := NewClient(Upstream{URL: upstream.URL, Version: "12.5"})
			So(err, ShouldNotBeNil)
		})

		Convey("Call posts the envelope with Basic credentials", func() {
			c, err := NewClient(Upstream{URL: upstream.URL, Version: "12.5", Username: "axl", Password: "pw", Timeout: time.Second})
			So(err, ShouldBeNil)
			resp, err := c.Call(context.Background(), "listPhone", []byte("<x/>"))
			So(err, ShouldBeNil)
			So(resp.Status, ShouldEqual, http.StatusOK)
			So(string(resp.Body), ShouldEqual, "<return><phone/></return>")

			user, pass, ok := got.BasicAuth()
			So(ok, ShouldBeTrue)
			So(user, ShouldEqual, "axl")
			So(pass, ShouldEqual, "pw")
			So(got.Header.Get("SOAPAction"), ShouldEqual, `"CUCM:DB ver=12.5 listPhone"`)
			So(body, ShouldEqual, "<x/>")
		})
	})
}

type fakeAXL struct {
	op       string
	envelope string
	resp     *Response
	err      error
}

func (f *fakeAXL) Call(ctx context.Context, op string, envelope []byte) (*Response, error) {
	f.op, f.envelope = op, string(envelope)
	return f.resp, f.err
}

func do(h http.Handler, method, target string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestServer(t *testing.T) {
	Convey("Given the proxy in front of AXL", t, func() {
		axl := &fakeAXL{resp: &Response{Status: http.StatusOK, ContentType: "text/xml", Body: []byte("<listPhoneResponse/>")}}
		h := New(axl, "12.5", nil).Router()

		Convey("the landing page and health check answer", func() {
			rec := do(h, http.MethodGet, "/", nil)
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(rec.Body.String(), ShouldContainSubstring, "Provisioning API")
			rec = do(h, http.MethodGet, "/healthz", nil)
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(rec.Body.String(), ShouldContainSubstring, `"status":"ok"`)
		})

		Convey("listphone forwards every criterion and relays the reply", func() {
			rec := do(h, http.MethodPost, "/api/v1/macd/listphone?name=SEP%25&protocol=SIP", nil)
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(rec.Body.String(), ShouldEqual, "<listPhoneResponse/>")
			So(rec.Header().Get("Content-Type"), ShouldEqual, "text/xml")
			So(axl.op, ShouldEqual, "listPhone")
			So(axl.envelope, ShouldContainSubstring, "<name>SEP%</name><protocol>SIP</protocol>")
			So(rec.Header().Get(RequestIDHeader), ShouldNotBeEmpty)
		})

		Convey("listphone without criteria is a bad request", func() {
			rec := do(h, http.MethodPost, "/api/v1/macd/listphone", nil)
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
			So(axl.op, ShouldBeEmpty)
		})

		Convey("getphone needs a name", func() {
			rec := do(h, http.MethodPost, "/api/v1/macd/getphone", nil)
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
			rec = do(h, http.MethodPost, "/api/v1/macd/getphone?name=SEP0011AABBCCDD", nil)
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(axl.op, ShouldEqual, "getPhone")
		})

		Convey("AXL faults keep their status", func() {
			axl.resp = &Response{Status: http.StatusInternalServerError, ContentType: "text/xml", Body: []byte("<soapenv:Fault/>")}
			rec := do(h, http.MethodPost, "/api/v1/macd/listphone?name=x", nil)
			So(rec.Code, ShouldEqual, http.StatusInternalServerError)
			So(rec.Body.String(), ShouldEqual, "<soapenv:Fault/>")
		})

		Convey("an unreachable upstream is a bad gateway", func() {
			axl.resp, axl.err = nil, io.ErrUnexpectedEOF
			rec := do(h, http.MethodPost, "/api/v1/macd/listphone?name=x", nil)
			So(rec.Code, ShouldEqual, http.StatusBadGateway)
		})

		Convey("a caller request id is kept", func() {
			id := "7c9e6679-7425-40de-944b-e07fc1f90ae7"
			rec := do(h, http.MethodGet, "/healthz", http.Header{RequestIDHeader: {id}})
			So(rec.Header().Get(RequestIDHeader), ShouldEqual, id)
		})
	})

	Convey("Given the proxy with bearer tokens", t, func() {
		axl := &fakeAXL{resp: &Response{Status: http.StatusOK, Body: []byte("ok")}}
		tokens := NewJWTIssuer([]byte("test-signing-key"), time.Minute)
		h := New(axl, "12.5", tokens).Router()

		Convey("API calls without a token are refused", func() {
			rec := do(h, http.MethodPost, "/api/v1/macd/listphone?name=x", nil)
			So(rec.Code, ShouldEqual, http.StatusUnauthorized)
			So(axl.op, ShouldBeEmpty)
		})

		Convey("a token from another key is refused", func() {
			other, _, err := NewJWTIssuer([]byte("other-key"), time.Minute).Issue("ops")
			So(err, ShouldBeNil)
			rec := do(h, http.MethodPost, "/api/v1/macd/listphone?name=x", http.Header{"Authorization": {"Bearer " + other}})
			So(rec.Code, ShouldEqual, http.StatusUnauthorized)
		})

		Convey("a valid token passes", func() {
			token, ttl, err := tokens.Issue("ops")
			So(err, ShouldBeNil)
			So(ttl, ShouldEqual, 60)
			sub, err := tokens.Verify(token)
			So(err, ShouldBeNil)
			So(sub, ShouldEqual, "ops")
			rec := do(h, http.MethodPost, "/api/v1/macd/listphone?name=x", http.Header{"Authorization": {"Bearer " + token}})
			So(rec.Code, ShouldEqual, http.StatusOK)
		})

		Convey("the health check stays open", func() {
			rec := do(h, http.MethodGet, "/healthz", nil)
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(strings.TrimSpace(rec.Body.String()), ShouldEqual, `{"status":"ok"}`)
		})
	})
}
