package fakeapi

import (
	"net/http"
	"strconv"
	"time"
)

type address struct {
	ID           int64  `json:"id"`
	AddressType  string `json:"address_type"`
	FullName     string `json:"full_name"`
	Phone        string `json:"phone"`
	AddressLine1 string `json:"address_line1"`
	AddressLine2 string `json:"address_line2"`
	City         string `json:"city"`
	State        string `json:"state"`
	PostalCode   string `json:"postal_code"`
	Country      string `json:"country"`
	IsDefault    bool   `json:"is_default"`
	CreatedAt    string `json:"created_at"`
}

type addressPatch struct {
	AddressType  *string `json:"address_type"`
	FullName     *string `json:"full_name"`
	Phone        *string `json:"phone"`
	AddressLine1 *string `json:"address_line1"`
	AddressLine2 *string `json:"address_line2"`
	City         *string `json:"city"`
	State        *string `json:"state"`
	PostalCode   *string `json:"postal_code"`
	Country      *string `json:"country"`
	IsDefault    *bool   `json:"is_default"`
}

func (p addressPatch) apply(a *address) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&a.AddressType, p.AddressType)
	set(&a.FullName, p.FullName)
	set(&a.Phone, p.Phone)
	set(&a.AddressLine1, p.AddressLine1)
	set(&a.AddressLine2, p.AddressLine2)
	set(&a.City, p.City)
	set(&a.State, p.State)
	set(&a.PostalCode, p.PostalCode)
	set(&a.Country, p.Country)
	if p.IsDefault != nil {
		a.IsDefault = *p.IsDefault
	}
}

func validAddressType(t string) bool {
	return t == "shipping" || t == "billing"
}

func (s *Server) findAddressLocked(userID, id int64) *address {
	for _, a := range s.addresses[userID] {
		if a.ID == id {
			return a
		}
	}
	return nil
}

func (s *Server) handleListAddresses(w http.ResponseWriter, r *http.Request, acct *account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.addresses[acct.user.ID]
	if list == nil {
		list = []*address{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleCreateAddress(w http.ResponseWriter, r *http.Request, acct *account) {
	var a address
	if !decodeBody(w, r, &a) {
		return
	}

	fields := map[string][]string{}
	for name, value := range map[string]string{
		"full_name": a.FullName, "phone": a.Phone, "address_line1": a.AddressLine1,
		"city": a.City, "state": a.State, "postal_code": a.PostalCode, "country": a.Country,
	} {
		if value == "" {
			fields[name] = []string{"This field is required."}
		}
	}
	if !validAddressType(a.AddressType) {
		fields["address_type"] = []string{`"` + a.AddressType + `" is not a valid choice.`}
	}
	if len(fields) > 0 {
		writeFieldErrors(w, fields)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	a.ID = s.newIDLocked()
	a.CreatedAt = s.now().UTC().Format(time.RFC3339)
	s.addresses[acct.user.ID] = append(s.addresses[acct.user.ID], &a)
	writeJSON(w, http.StatusCreated, a)
}

func (s *Server) handleUpdateAddress(w http.ResponseWriter, r *http.Request, acct *account) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeDetail(w, http.StatusNotFound, "Not found.")
		return
	}
	var patch addressPatch
	if !decodeBody(w, r, &patch) {
		return
	}
	if patch.AddressType != nil && !validAddressType(*patch.AddressType) {
		writeFieldErrors(w, map[string][]string{"address_type": {`"` + *patch.AddressType + `" is not a valid choice.`}})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.findAddressLocked(acct.user.ID, id)
	if a == nil {
		writeDetail(w, http.StatusNotFound, "Not found.")
		return
	}
	patch.apply(a)
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleDeleteAddress(w http.ResponseWriter, r *http.Request, acct *account) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeDetail(w, http.StatusNotFound, "Not found.")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.addresses[acct.user.ID]
	for i, a := range list {
		if a.ID == id {
			s.addresses[acct.user.ID] = append(list[:i], list[i+1:]...)
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	writeDetail(w, http.StatusNotFound, "Not found.")
}
