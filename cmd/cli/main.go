// Command bb is a CLI client for the bairro-board HTTP API.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// ---- config/token store ----

type tokenFile struct {
	SessionToken string    `json:"session_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

func cfgDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "bairro-board")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "bairro-board")
}

func tokenPath() string { return filepath.Join(cfgDir(), "token.json") }

func saveToken(tok string, exp time.Time) error {
	if err := os.MkdirAll(cfgDir(), 0o700); err != nil {
		return err
	}
	f, err := os.OpenFile(tokenPath(), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(tokenFile{SessionToken: tok, ExpiresAt: exp})
}

func loadToken() (string, error) {
	b, err := os.ReadFile(tokenPath())
	if err != nil {
		return "", err
	}
	var tf tokenFile
	if err := json.Unmarshal(b, &tf); err != nil {
		return "", err
	}
	if tf.SessionToken == "" || time.Now().After(tf.ExpiresAt) {
		return "", errors.New("no valid session (login required)")
	}
	return tf.SessionToken, nil
}

func removeToken() error {
	err := os.Remove(tokenPath())
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func usage() {
	fmt.Fprintf(os.Stderr, `bb CLI
Usage:
  bb -addr HOST:PORT <cmd> [args]

Commands:
  version
  login        -u <username> -p <password>           (saves session)
  logout
  me
  list         [-category <name>]
  my
  get          -id <n>
  add          -category c -title t -description d [-image url] [-whatsapp n] [-instagram h]
  edit         -id <n> [-category c] [-title t] [-description d] [-image url] [-whatsapp n] [-instagram h]
  rm           -id <n>
  collab-list
  collab-add   -u <username> -p <password> -name <name>
  collab-edit  -id <n> [-u <username>] [-p <password>] [-name <name>]
  collab-rm    -id <n>
  admin-ads
  insta        -u <username> [-refresh]
  insta-clear  [-u <username>]
`)
	os.Exit(2)
}

// ---- main ----

var (
	version   = "dev"
	buildDate = "unknown"
)

// main dispatches subcommands against the API at -addr.
func main() {
	// global flags
	addr := flag.String("addr", "localhost:3000", "server addr or base URL")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
	}
	cmd, args := flag.Arg(0), flag.Args()[1:]

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch cmd {

	case "version":
		fmt.Printf("bb %s (%s)\n", version, buildDate)

	case "login":
		fs := flag.NewFlagSet("login", flag.ExitOnError)
		u := fs.String("u", "", "username")
		p := fs.String("p", "", "password")
		_ = fs.Parse(args)
		if *u == "" || *p == "" {
			fmt.Fprintln(os.Stderr, "need -u and -p")
			os.Exit(1)
		}
		tok, exp, err := newClient(*addr, "").login(ctx, *u, *p)
		if err != nil {
			fail(err)
		}
		if err := saveToken(tok, exp); err != nil {
			fail(err)
		}
		fmt.Println("ok")

	case "logout":
		tok, _ := loadToken()
		if tok != "" {
			if _, err := newClient(*addr, tok).do(ctx, http.MethodPost, "/api/logout", nil, nil); err != nil {
				fail(err)
			}
		}
		if err := removeToken(); err != nil {
			fail(err)
		}
		fmt.Println("ok")

	case "me":
		call(ctx, authed(*addr), http.MethodGet, "/api/auth/me", nil)

	case "list":
		fs := flag.NewFlagSet("list", flag.ExitOnError)
		category := fs.String("category", "", "only ads in this category")
		_ = fs.Parse(args)
		path := "/api/ads"
		if *category != "" {
			path = "/api/ads/category/" + url.PathEscape(*category)
		}
		call(ctx, newClient(*addr, ""), http.MethodGet, path, nil)

	case "my":
		call(ctx, authed(*addr), http.MethodGet, "/api/ads/my", nil)

	case "get":
		id := idFlag("get", args)
		call(ctx, newClient(*addr, ""), http.MethodGet, "/api/ads/id/"+id, nil)

	case "add", "edit":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		id := fs.Int64("id", 0, "ad id (edit)")
		vals := map[string]*string{}
		for _, name := range []string{"category", "title", "description", "image", "whatsapp", "instagram"} {
			vals[name] = fs.String(name, "", name)
		}
		_ = fs.Parse(args)
		set := map[string]bool{}
		fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
		body := setFields(set, vals)

		if cmd == "add" {
			call(ctx, authed(*addr), http.MethodPost, "/api/ads", body)
			return
		}
		if *id <= 0 {
			fmt.Fprintln(os.Stderr, "need -id")
			os.Exit(1)
		}
		call(ctx, authed(*addr), http.MethodPut, "/api/ads/"+strconv.FormatInt(*id, 10), body)

	case "rm":
		id := idFlag("rm", args)
		call(ctx, authed(*addr), http.MethodDelete, "/api/ads/"+id, nil)

	case "collab-list":
		call(ctx, authed(*addr), http.MethodGet, "/api/admin/collaborators", nil)

	case "collab-add", "collab-edit":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		id := fs.Int64("id", 0, "collaborator id (edit)")
		vals := map[string]*string{
			"username": fs.String("u", "", "username"),
			"password": fs.String("p", "", "password"),
			"name":     fs.String("name", "", "display name"),
		}
		_ = fs.Parse(args)
		set := map[string]bool{}
		fs.Visit(func(f *flag.Flag) {
			switch f.Name {
			case "u":
				set["username"] = true
			case "p":
				set["password"] = true
			default:
				set[f.Name] = true
			}
		})
		body := setFields(set, vals)

		if cmd == "collab-add" {
			call(ctx, authed(*addr), http.MethodPost, "/api/admin/collaborators", body)
			return
		}
		if *id <= 0 {
			fmt.Fprintln(os.Stderr, "need -id")
			os.Exit(1)
		}
		call(ctx, authed(*addr), http.MethodPut, "/api/admin/collaborators/"+strconv.FormatInt(*id, 10), body)

	case "collab-rm":
		id := idFlag("collab-rm", args)
		call(ctx, authed(*addr), http.MethodDelete, "/api/admin/collaborators/"+id, nil)

	case "admin-ads":
		call(ctx, authed(*addr), http.MethodGet, "/api/admin/ads", nil)

	case "insta":
		fs := flag.NewFlagSet("insta", flag.ExitOnError)
		u := fs.String("u", "", "instagram username")
		refresh := fs.Bool("refresh", false, "bypass the server cache")
		_ = fs.Parse(args)
		if *u == "" {
			fmt.Fprintln(os.Stderr, "need -u")
			os.Exit(1)
		}
		path := "/api/instagram/profile/" + url.PathEscape(*u)
		if *refresh {
			path += "?refresh=true"
		}
		call(ctx, newClient(*addr, ""), http.MethodGet, path, nil)

	case "insta-clear":
		fs := flag.NewFlagSet("insta-clear", flag.ExitOnError)
		u := fs.String("u", "", "instagram username (empty clears all)")
		_ = fs.Parse(args)
		path := "/api/admin/instagram/cache"
		if *u != "" {
			path += "?username=" + url.QueryEscape(*u)
		}
		call(ctx, authed(*addr), http.MethodDelete, path, nil)

	default:
		usage()
	}
}

func authed(addr string) *client {
	tok, err := loadToken()
	if err != nil {
		fail(err)
	}
	return newClient(addr, tok)
}

func call(ctx context.Context, c *client, method, path string, body any) {
	var out any
	if _, err := c.do(ctx, method, path, body, &out); err != nil {
		fail(err)
	}
	printJSON(out)
}

func idFlag(name string, args []string) string {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	id := fs.Int64("id", 0, "id")
	_ = fs.Parse(args)
	if *id <= 0 {
		fmt.Fprintln(os.Stderr, "need -id")
		os.Exit(1)
	}
	return strconv.FormatInt(*id, 10)
}

func fail(err error) {
	var ae *apiError
	if errors.As(err, &ae) {
		fmt.Fprintf(os.Stderr, "api error: status=%d msg=%s\n", ae.Status, ae.Message)
		os.Exit(1)
	}
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
