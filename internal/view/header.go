package view

import "net/url"

// Header carries the values every page header shows.
type Header struct {
	Title     string
	LoggedIn  bool
	Nickname  string
	LoginURL  string
	LogoutURL string
}

func (h Header) values() map[string]any {
	values := map[string]any{
		"title":     h.Title,
		"logged_in": h.LoggedIn,
		"nickname":  h.Nickname,
		"list_url":  "",
	}
	if h.LoggedIn {
		values["url"] = h.LogoutURL
		values["url_linktext"] = "Logout"
		values["list_url"] = ListPath(h.Nickname)
	} else {
		values["url"] = h.LoginURL
		values["url_linktext"] = "Login"
	}
	return values
}

func ListPath(owner string) string {
	return "/" + url.PathEscape(owner) + "/list"
}

func ViewPath(owner, slug string) string {
	return "/" + url.PathEscape(owner) + "/view/" + url.PathEscape(slug)
}

func EditPath(owner, slug string) string {
	return "/" + url.PathEscape(owner) + "/edit/" + url.PathEscape(slug)
}
