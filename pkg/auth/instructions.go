package auth

import (
	"fmt"
	"io"
	"strings"
)

// ShowAPIKeyGuide explains where the key comes from and where it can live
func ShowAPIKeyGuide(w io.Writer) {
	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintln(w, "POLYGON API KEY")
	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintln(w)
	fmt.Fprintln(w, "1. Sign in at https://polygon.io/dashboard and open 'API Keys'.")
	fmt.Fprintln(w, "2. Copy the key of a plan that includes options aggregates.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "The key is looked up in this order:")
	fmt.Fprintln(w, "   --api-key flag")
	fmt.Fprintf(w, "   %s environment variable (also read from .env)\n", APIKeyEnv)
	fmt.Fprintln(w, "   api.key in the config file")
	fmt.Fprintln(w, "   'polyagg auth login' (system keyring, else an encrypted file)")
	fmt.Fprintf(w, "   %s in the working directory: {\"api_key\": \"...\"}\n", DefaultCredsFile)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "The free tier allows 5 requests per minute, which is the default pace.")
	fmt.Fprintln(w, strings.Repeat("=", 72))
}
