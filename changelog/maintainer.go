package changelog

import (
	"bufio"
	"os"
	"os/user"
	"regexp"
	"strings"
)

var nameEmailRe = regexp.MustCompile(`^(.*)\s+<(.*)>$`)

// Maintainer returns the name and e-mail address to use in a trailer line
// the way dch finds them: DEBEMAIL, DEBFULLNAME, EMAIL and NAME, then the
// password database, /etc/mailname and the host name. Either value is ""
// when it cannot be determined.
func Maintainer() (name, email string) {
	return maintainerFrom(os.LookupEnv, systemIdentity)
}

type identity struct {
	gecos    string
	username string
	mailname string
}

func systemIdentity() identity {
	var id identity
	if u, err := user.Current(); err == nil {
		id.gecos = u.Name
		id.username = u.Username
	}
	if f, err := os.Open("/etc/mailname"); err == nil {
		s := bufio.NewScanner(f)
		if s.Scan() {
			id.mailname = strings.TrimSpace(s.Text())
		}
		f.Close()
	}
	if id.mailname == "" {
		id.mailname, _ = os.Hostname()
	}
	return id
}

func maintainerFrom(lookup func(string) (string, bool), system func() identity) (name, email string) {
	env := make(map[string]string)
	for _, k := range []string{"DEBEMAIL", "DEBFULLNAME", "EMAIL", "NAME"} {
		if v, ok := lookup(k); ok {
			env[k] = v
		}
	}
	split := func(key string) {
		m := nameEmailRe.FindStringSubmatch(env[key])
		if m == nil {
			return
		}
		if _, ok := env["DEBFULLNAME"]; !ok {
			env["DEBFULLNAME"] = m[1]
		}
		env[key] = m[2]
	}
	if _, ok := env["DEBEMAIL"]; ok {
		split("DEBEMAIL")
	}
	_, hasDebEmail := env["DEBEMAIL"]
	_, hasFullName := env["DEBFULLNAME"]
	if _, ok := env["EMAIL"]; ok && (!hasDebEmail || !hasFullName) {
		split("EMAIL")
	}

	var id *identity
	sys := func() identity {
		if id == nil {
			v := system()
			id = &v
		}
		return *id
	}

	if v, ok := env["DEBFULLNAME"]; ok {
		name = v
	} else if v, ok := env["NAME"]; ok {
		name = v
	} else {
		name, _, _ = strings.Cut(sys().gecos, ",")
	}

	if v, ok := env["DEBEMAIL"]; ok {
		email = v
	} else if v, ok := env["EMAIL"]; ok {
		email = v
	} else if s := sys(); s.mailname != "" && s.username != "" {
		email = s.username + "@" + s.mailname
	}
	return name, email
}
