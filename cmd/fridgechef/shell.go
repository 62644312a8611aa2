package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/ahmetcoskunkizilkaya/fridgechef/internal/appstate"
	"github.com/ahmetcoskunkizilkaya/fridgechef/internal/docclient"
	"github.com/ahmetcoskunkizilkaya/fridgechef/internal/domain"
)

var errQuit = errors.New("quit")

// crashMessage is printed when a command panics; the shell keeps running.
const crashMessage = "Algo deu errado. Tente novamente."

type shellCommand struct {
	usage string
	help  string
	run   func(sh *shell, args []string) error
}

// shell is a line-oriented front end over appstate.App. Recipes listed by
// the last favorites, history or suggest command can be opened by number.
type shell struct {
	ctx    context.Context
	c      *client
	out    *syncWriter
	listed []domain.Recipe
	cmds   map[string]shellCommand
}

type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (w *syncWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.w.Write(p)
}

func newShell(ctx context.Context, c *client, out io.Writer) *shell {
	sh := &shell{ctx: ctx, c: c, out: &syncWriter{w: out}}
	sh.cmds = map[string]shellCommand{
		"help":             {"help", "list commands", (*shell).help},
		"status":           {"status", "session and data summary", (*shell).status},
		"go":               {"go <screen>", "navigate to a screen", (*shell).navigate},
		"members":          {"members", "list family members", (*shell).members},
		"me":               {"me <name>", "name the account owner's profile", (*shell).saveOwner},
		"member-add":       {"member-add <name> [tag,...]", "add a family member", (*shell).addMember},
		"select":           {"select <member-id>", "toggle a member in the active selection", (*shell).toggleProfile},
		"select-all":       {"select-all", "select every member", (*shell).selectAll},
		"favorites":        {"favorites", "list favorite recipes", (*shell).favorites},
		"history":          {"history", "list cooked recipes", (*shell).history},
		"analyze":          {"analyze <image>", "list the ingredients in a photo", (*shell).analyze},
		"suggest":          {"suggest <ingredient,...> [servings]", "suggest recipes for the active members", (*shell).suggest},
		"open":             {"open <n>", "open a listed recipe", (*shell).open},
		"scale":            {"scale <servings>", "show the open recipe for another serving count", (*shell).scale},
		"favorite":         {"favorite", "toggle the open recipe as favorite", (*shell).toggleFavorite},
		"rate":             {"rate <1-5>", "rate the open recipe", (*shell).rate},
		"cooked":           {"cooked", "record the open recipe in the history", (*shell).cooked},
		"add-missing":      {"add-missing", "put the open recipe's missing ingredients on the list", (*shell).addMissing},
		"share":            {"share", "share link for the open recipe", (*shell).share},
		"shopping":         {"shopping", "show the shopping list", (*shell).shopping},
		"buy":              {"buy <name> [quantity]", "add to the shopping list", (*shell).buy},
		"check":            {"check <n>", "check or uncheck an item", (*shell).check},
		"edit":             {"edit <n> <name> [quantity]", "change an item", (*shell).edit},
		"drop":             {"drop <n>", "remove an item", (*shell).drop},
		"clear":            {"clear", "empty the shopping list", (*shell).clear},
		"share-list":       {"share-list", "share link for the shopping list", (*shell).shareList},
		"pantry":           {"pantry [add|remove <name>]", "show or change the pantry", (*shell).pantry},
		"complete-profile": {"complete-profile <tax-id>", "finish the account profile", (*shell).completeProfile},
		"federated":        {"federated <provider> <identity-token> [full name]", "sign in with a third-party identity", (*shell).federated},
		"demo":             {"demo", "enter demo mode", (*shell).enterDemo},
		"exit-demo":        {"exit-demo", "leave demo mode", (*shell).exitDemo},
		"logout":           {"logout", "sign out", (*shell).logout},
		"quit":             {"quit", "leave the shell", func(*shell, []string) error { return errQuit }},
	}
	return sh
}

func (sh *shell) run(in io.Reader) error {
	unwatch := sh.c.app.Store().Watch(sh.onChange)
	defer unwatch()

	printStatus(sh.out, sh.c.app.Snapshot())
	sc := bufio.NewScanner(in)
	for {
		fmt.Fprint(sh.out, "> ")
		if !sc.Scan() {
			fmt.Fprintln(sh.out)
			return sc.Err()
		}
		if err := sh.exec(sc.Text()); errors.Is(err, errQuit) {
			return nil
		}
	}
}

// exec runs one line. A panicking command is reported and the shell goes on.
func (sh *shell) exec(line string) (err error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	name, args := fields[0], fields[1:]
	if name == "exit" {
		name = "quit"
	}
	cmd, ok := sh.cmds[name]
	if !ok {
		fmt.Fprintf(sh.out, "unknown command %q, try help\n", name)
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			sh.c.log.Error("shell command panicked", "command", name, "panic", r)
			fmt.Fprintln(sh.out, crashMessage)
			err = nil
		}
	}()
	if err := cmd.run(sh, args); err != nil {
		if errors.Is(err, errQuit) {
			return err
		}
		fmt.Fprintln(sh.out, err)
	}
	return nil
}

// onChange prints screen changes and new data counts as they arrive.
func (sh *shell) onChange(prev, next appstate.State) {
	if prev.Route != next.Route {
		fmt.Fprintf(sh.out, "[screen: %s]\n", next.Route)
	}
	counts := []struct {
		name       string
		prev, next int
	}{
		{"members", len(prev.Members), len(next.Members)},
		{"favorites", len(prev.Favorites), len(next.Favorites)},
		{"history", len(prev.History), len(next.History)},
		{"shopping", len(prev.Shopping), len(next.Shopping)},
		{"pantry", len(prev.Pantry), len(next.Pantry)},
	}
	for _, c := range counts {
		if c.prev != c.next {
			fmt.Fprintf(sh.out, "[%s: %d]\n", c.name, c.next)
		}
	}
}

func (sh *shell) help([]string) error {
	names := make([]string, 0, len(sh.cmds))
	for name := range sh.cmds {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(sh.out, "  %-52s %s\n", sh.cmds[name].usage, sh.cmds[name].help)
	}
	return nil
}

func (sh *shell) status([]string) error {
	printStatus(sh.out, sh.c.app.Snapshot())
	return nil
}

func (sh *shell) navigate(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: go <screen>")
	}
	sh.c.app.Navigate(appstate.Route(args[0]))
	return nil
}

func (sh *shell) members([]string) error {
	st := sh.c.app.Snapshot()
	if len(st.Members) == 0 {
		fmt.Fprintln(sh.out, "No members yet. Use me <name> or member-add.")
		return nil
	}
	for _, m := range st.Members {
		mark := " "
		if slices.Contains(st.ActiveProfiles, m.ID) {
			mark = "*"
		}
		fmt.Fprintf(sh.out, "%s %-16s %s", mark, m.ID, m.Name)
		if len(m.Restrictions) > 0 {
			fmt.Fprintf(sh.out, " [%s]", strings.Join(m.Restrictions, ", "))
		}
		fmt.Fprintln(sh.out)
	}
	return nil
}

func (sh *shell) saveOwner(args []string) error {
	if len(args) == 0 {
		return errors.New("usage: me <name>")
	}
	m := domain.FamilyMember{ID: domain.PrimaryMemberID, Name: strings.Join(args, " ")}
	for _, cur := range sh.c.app.Snapshot().Members {
		if cur.ID == domain.PrimaryMemberID {
			cur.Name = m.Name
			m = cur
		}
	}
	sh.c.app.SaveMember(sh.ctx, m)
	return nil
}

func (sh *shell) addMember(args []string) error {
	if len(args) == 0 {
		return errors.New("usage: member-add <name> [tag,...]")
	}
	m := domain.FamilyMember{Name: args[0]}
	if len(args) > 1 {
		m.Restrictions = splitList(args[1])
	}
	sh.c.app.SaveMember(sh.ctx, m)
	return nil
}

func (sh *shell) toggleProfile(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: select <member-id>")
	}
	sh.c.app.ToggleActiveProfile(args[0])
	return sh.members(nil)
}

func (sh *shell) selectAll([]string) error {
	sh.c.app.SelectAllProfiles()
	return sh.members(nil)
}

func (sh *shell) favorites([]string) error {
	return sh.list(sh.c.app.Snapshot().Favorites)
}

func (sh *shell) history([]string) error {
	return sh.list(sh.c.app.Snapshot().History)
}

func (sh *shell) list(recipes []domain.Recipe) error {
	sh.listed = recipes
	if len(recipes) == 0 {
		fmt.Fprintln(sh.out, "Nothing here yet.")
	}
	for i, r := range recipes {
		fmt.Fprintf(sh.out, "%2d. %s (%d min, %s)", i+1, r.Title, r.TimeMinutes, r.Difficulty)
		if r.Rating > 0 {
			fmt.Fprintf(sh.out, " %s", strings.Repeat("*", r.Rating))
		}
		if r.CompletedAt != nil {
			fmt.Fprintf(sh.out, " cooked %s", r.CompletedAt.Format("02/01/2006"))
		}
		fmt.Fprintln(sh.out)
	}
	return nil
}

func (sh *shell) analyze(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: analyze <image>")
	}
	var ingredients []string
	if sh.c.app.Snapshot().DemoMode {
		ingredients = domain.MockIngredients()
	} else {
		image, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		mimeType := mime.TypeByExtension(filepath.Ext(args[0]))
		if mimeType == "" {
			mimeType = "image/jpeg"
		}
		var fallback bool
		if ingredients, fallback, err = sh.c.docs.AnalyzeImage(sh.ctx, image, mimeType); err != nil {
			return err
		}
		if fallback {
			fmt.Fprintln(sh.out, "(sample ingredients, the analysis service is unavailable)")
		}
	}
	fmt.Fprintln(sh.out, strings.Join(ingredients, ", "))
	return nil
}

func (sh *shell) suggest(args []string) error {
	if len(args) == 0 {
		return errors.New("usage: suggest <ingredient,...> [servings]")
	}
	st := sh.c.app.Snapshot()
	q := docclient.RecipeQuery{Ingredients: splitList(args[0]), Pantry: st.Pantry, Servings: 4}
	if len(args) > 1 {
		n, err := strconv.Atoi(args[1])
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid servings %q", args[1])
		}
		q.Servings = n
	}
	for _, m := range st.ActiveMembers() {
		q.Profiles = append(q.Profiles, domain.DietaryProfileOf(m))
	}

	var recipes []domain.Recipe
	if st.DemoMode {
		recipes = domain.MockRecipes()
	} else {
		var fallback bool
		var err error
		if recipes, fallback, err = sh.c.docs.SuggestRecipes(sh.ctx, q); err != nil {
			return err
		}
		if fallback {
			fmt.Fprintln(sh.out, "(sample recipes, the recipe service is unavailable)")
		}
	}
	return sh.list(recipes)
}

func (sh *shell) open(args []string) error {
	i, err := sh.index(args, len(sh.listed))
	if err != nil {
		return err
	}
	r := sh.listed[i]
	sh.c.app.SelectRecipe(&r)
	sh.printRecipe(r, r.Servings)
	return nil
}

func (sh *shell) printRecipe(r domain.Recipe, servings int) {
	fmt.Fprintf(sh.out, "%s - %d min, %s, serves %d\n", r.Title, r.TimeMinutes, r.Difficulty, servings)
	for _, line := range r.UsedIngredients {
		fmt.Fprintf(sh.out, "  + %s\n", domain.ScaleIngredient(line, r.Servings, servings))
	}
	for _, line := range r.MissingIngredients {
		fmt.Fprintf(sh.out, "  - %s (missing)\n", domain.ScaleIngredient(line, r.Servings, servings))
	}
	for i, step := range r.Instructions {
		fmt.Fprintf(sh.out, "  %d) %s\n", i+1, step)
	}
}

func (sh *shell) current() (domain.Recipe, error) {
	r := sh.c.app.Snapshot().CurrentRecipe
	if r == nil {
		return domain.Recipe{}, errors.New("no recipe open, use open <n>")
	}
	return *r, nil
}

func (sh *shell) scale(args []string) error {
	r, err := sh.current()
	if err != nil {
		return err
	}
	if len(args) != 1 {
		return errors.New("usage: scale <servings>")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n <= 0 {
		return fmt.Errorf("invalid servings %q", args[0])
	}
	sh.printRecipe(r, n)
	return nil
}

func (sh *shell) toggleFavorite([]string) error {
	r, err := sh.current()
	if err != nil {
		return err
	}
	sh.c.app.ToggleFavorite(sh.ctx, r)
	return nil
}

func (sh *shell) rate(args []string) error {
	if _, err := sh.current(); err != nil {
		return err
	}
	if len(args) != 1 {
		return errors.New("usage: rate <1-5>")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 || n > 5 {
		return errors.New("rating must be between 1 and 5")
	}
	sh.c.app.RateRecipe(sh.ctx, n)
	return nil
}

func (sh *shell) cooked([]string) error {
	r, err := sh.current()
	if err != nil {
		return err
	}
	sh.c.app.FinishCooking(sh.ctx, r)
	return nil
}

func (sh *shell) addMissing([]string) error {
	r, err := sh.current()
	if err != nil {
		return err
	}
	n := sh.c.app.AddMissingToShopping(sh.ctx, r)
	fmt.Fprintf(sh.out, "%d item(s) added to the shopping list\n", n)
	return nil
}

func (sh *shell) share([]string) error {
	r, err := sh.current()
	if err != nil {
		return err
	}
	fmt.Fprintln(sh.out, domain.RecipeShareLink(r))
	return nil
}

func (sh *shell) shopping([]string) error {
	items := sh.c.app.Snapshot().Shopping
	if len(items) == 0 {
		fmt.Fprintln(sh.out, "The shopping list is empty.")
	}
	for i, it := range items {
		box := "[ ]"
		if it.Checked {
			box = "[x]"
		}
		fmt.Fprintf(sh.out, "%2d. %s %s %s\n", i+1, box, it.Quantity, it.Name)
	}
	return nil
}

func (sh *shell) buy(args []string) error {
	if len(args) == 0 {
		return errors.New("usage: buy <name> [quantity]")
	}
	quantity := ""
	if len(args) > 1 {
		quantity = args[len(args)-1]
		args = args[:len(args)-1]
	}
	sh.c.app.AddShoppingItem(sh.ctx, strings.Join(args, " "), quantity)
	return nil
}

func (sh *shell) item(args []string) (domain.ShoppingItem, error) {
	items := sh.c.app.Snapshot().Shopping
	i, err := sh.index(args, len(items))
	if err != nil {
		return domain.ShoppingItem{}, err
	}
	return items[i], nil
}

func (sh *shell) check(args []string) error {
	it, err := sh.item(args)
	if err != nil {
		return err
	}
	sh.c.app.ToggleShoppingItem(sh.ctx, it.ID)
	return nil
}

func (sh *shell) edit(args []string) error {
	if len(args) < 2 {
		return errors.New("usage: edit <n> <name> [quantity]")
	}
	it, err := sh.item(args[:1])
	if err != nil {
		return err
	}
	name, quantity := args[1], it.Quantity
	if len(args) > 2 {
		quantity = args[2]
	}
	sh.c.app.EditShoppingItem(sh.ctx, it.ID, name, quantity)
	return nil
}

func (sh *shell) drop(args []string) error {
	it, err := sh.item(args)
	if err != nil {
		return err
	}
	sh.c.app.RemoveShoppingItem(sh.ctx, it.ID)
	return nil
}

func (sh *shell) clear([]string) error {
	sh.c.app.ClearShoppingList(sh.ctx)
	return nil
}

func (sh *shell) shareList([]string) error {
	fmt.Fprintln(sh.out, domain.ShoppingShareLink(sh.c.app.Snapshot().Shopping))
	return nil
}

func (sh *shell) pantry(args []string) error {
	if len(args) >= 2 {
		name := strings.Join(args[1:], " ")
		switch args[0] {
		case "add":
			sh.c.app.AddPantryItem(sh.ctx, name)
			return nil
		case "remove":
			sh.c.app.RemovePantryItem(sh.ctx, name)
			return nil
		}
		return errors.New("usage: pantry [add|remove <name>]")
	}
	pantry := sh.c.app.Snapshot().Pantry
	if len(pantry) == 0 {
		fmt.Fprintln(sh.out, "The pantry is empty.")
		return nil
	}
	fmt.Fprintln(sh.out, strings.Join(pantry, ", "))
	return nil
}

func (sh *shell) completeProfile(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: complete-profile <tax-id>")
	}
	if !sh.c.app.Snapshot().SignedIn() {
		return errors.New("sign in first")
	}
	p, err := sh.c.docs.UpdateProfile(sh.ctx, nil, &args[0])
	if err != nil {
		return err
	}
	if !p.NeedsProfileCompletion {
		fmt.Fprintln(sh.out, "Profile complete.")
	}
	return nil
}

func (sh *shell) federated(args []string) error {
	if len(args) < 2 {
		return errors.New("usage: federated <provider> <identity-token> [full name]")
	}
	if err := sh.c.auth.SignInWithIdentityToken(sh.ctx, args[0], args[1], strings.Join(args[2:], " ")); err != nil {
		return appstate.AsAuthError(err)
	}
	return nil
}

func (sh *shell) enterDemo([]string) error {
	sh.c.app.EnterDemo(sh.ctx)
	return nil
}

func (sh *shell) exitDemo([]string) error {
	sh.c.app.ExitDemo()
	return nil
}

func (sh *shell) logout([]string) error {
	if sh.c.app.Snapshot().DemoMode {
		sh.c.app.ExitDemo()
	}
	return sh.c.app.SignOut(sh.ctx)
}

// index parses a 1-based position into a list of n entries.
func (sh *shell) index(args []string, n int) (int, error) {
	if len(args) != 1 {
		return 0, errors.New("expected one item number")
	}
	i, err := strconv.Atoi(args[0])
	if err != nil || i < 1 || i > n {
		return 0, fmt.Errorf("no item %s", args[0])
	}
	return i - 1, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
