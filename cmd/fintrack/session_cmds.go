package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/subcommands"
	"github.com/jrsteele09/fintrack-client/auth"
	"github.com/jrsteele09/fintrack-client/credentials"
	"github.com/jrsteele09/fintrack-client/internal/utils"
)

func appFrom(args []interface{}) *app {
	return args[0].(*app)
}

func fail(err error) subcommands.ExitStatus {
	fmt.Fprintf(os.Stderr, "Error: %s\n", userMessage(err))
	return subcommands.ExitFailure
}

type loginCmd struct {
	email    string
	password string
}

func (*loginCmd) Name() string     { return "login" }
func (*loginCmd) Synopsis() string { return "sign in with email and password" }
func (*loginCmd) Usage() string {
	return `fintrack login -email <email> [-password <password>]

  Signs in and stores the session. The password is read from
  FINTRACK_PASSWORD when -password is not given.
`
}

func (c *loginCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.email, "email", "", "account email")
	f.StringVar(&c.password, "password", "", "account password")
}

func (c *loginCmd) Execute(ctx context.Context, _ *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	a := appFrom(args)
	password := c.password
	if password == "" {
		password = os.Getenv("FINTRACK_PASSWORD")
	}
	session, err := a.service.SignIn(ctx, c.email, password)
	if err != nil {
		return fail(err)
	}
	fmt.Fprintf(a.out, "Signed in as %s\n", session.User.DisplayName())
	return subcommands.ExitSuccess
}

type registerCmd struct {
	params auth.SignUpParameters
}

func (*registerCmd) Name() string     { return "register" }
func (*registerCmd) Synopsis() string { return "create an account and sign in" }
func (*registerCmd) Usage() string {
	return `fintrack register -name <name> -email <email> -password <password> [-phone <number>]
`
}

func (c *registerCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.params.Name, "name", "", "full name")
	f.StringVar(&c.params.Email, "email", "", "account email")
	f.StringVar(&c.params.PhoneNumber, "phone", "", "phone number")
	f.StringVar(&c.params.Password, "password", "", "account password")
}

func (c *registerCmd) Execute(ctx context.Context, _ *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	a := appFrom(args)
	session, err := a.service.SignUp(ctx, c.params)
	if err != nil {
		return fail(err)
	}
	fmt.Fprintf(a.out, "Welcome, %s\n", session.User.DisplayName())
	return subcommands.ExitSuccess
}

type logoutCmd struct{}

func (*logoutCmd) Name() string             { return "logout" }
func (*logoutCmd) Synopsis() string         { return "sign out and remove the stored session" }
func (*logoutCmd) Usage() string            { return "fintrack logout\n" }
func (*logoutCmd) SetFlags(_ *flag.FlagSet) {}

func (*logoutCmd) Execute(ctx context.Context, _ *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	a := appFrom(args)
	a.service.SignOut(ctx)
	fmt.Fprintln(a.out, "Signed out")
	return subcommands.ExitSuccess
}

type whoamiCmd struct{}

func (*whoamiCmd) Name() string             { return "whoami" }
func (*whoamiCmd) Synopsis() string         { return "fetch the signed in user's profile from the server" }
func (*whoamiCmd) Usage() string            { return "fintrack whoami\n" }
func (*whoamiCmd) SetFlags(_ *flag.FlagSet) {}

func (*whoamiCmd) Execute(ctx context.Context, _ *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	a := appFrom(args)
	user, err := a.service.CurrentUser(ctx)
	if err != nil {
		return fail(err)
	}
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(user); err != nil {
		return fail(err)
	}
	return subcommands.ExitSuccess
}

type statusCmd struct {
	banner bool
}

func (*statusCmd) Name() string     { return "status" }
func (*statusCmd) Synopsis() string { return "show the locally stored session without contacting the server" }
func (*statusCmd) Usage() string    { return "fintrack status [-banner]\n" }

func (c *statusCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.banner, "banner", false, "print the application banner first")
}

func (c *statusCmd) Execute(_ context.Context, _ *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	a := appFrom(args)
	if c.banner {
		displayAppname(a.cfg.GetAppName())
	}

	state := a.store.State()
	fmt.Fprintf(a.out, "Server:   %s\n", a.service.Dispatcher().BaseURL())
	fmt.Fprintf(a.out, "Session:  %s\n", state)
	if profile, ok := a.store.UserProfile(); ok {
		fmt.Fprintf(a.out, "User:     %s <%s>\n", profile.DisplayName(), profile.Email)
		if phone := utils.Value(profile.PhoneNumber); phone != "" {
			fmt.Fprintf(a.out, "Phone:    %s\n", phone)
		}
	}
	if exp, ok := a.store.ExpiresAt(); ok {
		fmt.Fprintf(a.out, "Expires:  %s\n", exp.Local().Format(time.RFC1123))
	}
	if _, ok := a.store.RefreshCredential(); ok {
		fmt.Fprintln(a.out, "Renewal:  available")
	}

	// Evaluated after State so an expired or corrupt session is reported
	// before it is purged.
	if state != credentials.Authenticated {
		a.store.IsAuthenticated()
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

type disclosuresCmd struct{}

func (*disclosuresCmd) Name() string             { return "disclosures" }
func (*disclosuresCmd) Synopsis() string         { return "explain how the session is kept on this device" }
func (*disclosuresCmd) Usage() string            { return "fintrack disclosures\n" }
func (*disclosuresCmd) SetFlags(_ *flag.FlagSet) {}

func (*disclosuresCmd) Execute(_ context.Context, _ *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	a := appFrom(args)
	for _, line := range a.store.SecurityDisclosures() {
		fmt.Fprintf(a.out, "- %s\n", line)
	}
	return subcommands.ExitSuccess
}
