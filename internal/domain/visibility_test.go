package domain

import "testing"

func memberActor(userID, contactID string, companies ...CompanyID) ActorContext {
	aff, _ := NewAffiliations(companies...)
	return ActorContext{UserID: userID, ContactID: contactID, Role: RoleUser, Affiliations: aff}
}

func TestIsProjectVisibleSharedScoping(t *testing.T) {
	unscoped := Project{ID: "p0", Visibility: VisibilityShared, CreatedBy: "creator"}
	acme := Project{ID: "p1", Visibility: VisibilityShared, Affiliations: Affiliations{"acme"}, CreatedBy: "creator"}

	userA := memberActor("u1", "c1", "acme")
	userB := memberActor("u2", "c2", "bolt")
	vendor := memberActor("u3", "c3")
	vendor.IsVendor = true
	nobody := memberActor("u4", "c4")

	cases := []struct {
		name    string
		project Project
		actor   ActorContext
		want    bool
	}{
		{"unscoped visible to company a", unscoped, userA, true},
		{"unscoped visible to company b", unscoped, userB, true},
		{"unscoped visible to unaffiliated", unscoped, nobody, true},
		{"scoped visible to matching company", acme, userA, true},
		{"scoped hidden from other company", acme, userB, false},
		{"scoped visible to vendor", acme, vendor, true},
		{"scoped hidden from unaffiliated", acme, nobody, false},
	}
	for _, tc := range cases {
		if got := IsProjectVisible(tc.project, tc.actor); got != tc.want {
			t.Fatalf("%s: got %v want %v", tc.name, got, tc.want)
		}
	}
}

func TestIsProjectVisiblePersonalAndOneOnOne(t *testing.T) {
	personal := Project{ID: "p1", Visibility: VisibilityPersonal, Affiliations: Affiliations{"acme"}, CreatedBy: "u1"}
	oneOnOne := Project{ID: "p2", Visibility: VisibilityOneOnOne, CreatedBy: "u1", SharedContactID: "c2"}

	creator := memberActor("u1", "c1", "acme")
	sameCompany := memberActor("u5", "c5", "acme")
	partner := memberActor("u2", "c2")
	admin := memberActor("u9", "c9")
	admin.Role = RoleAdmin

	if !IsProjectVisible(personal, creator) {
		t.Fatal("expected creator to see personal project")
	}
	if IsProjectVisible(personal, sameCompany) {
		t.Fatal("expected company flags to be ignored for personal projects")
	}
	if !IsProjectVisible(personal, admin) {
		t.Fatal("expected admin bypass for personal project")
	}
	if !IsProjectVisible(oneOnOne, creator) || !IsProjectVisible(oneOnOne, partner) {
		t.Fatal("expected creator and shared contact to see one-on-one project")
	}
	if IsProjectVisible(oneOnOne, sameCompany) {
		t.Fatal("expected one-on-one project hidden from third parties")
	}
}

func TestPolicyFor(t *testing.T) {
	if _, ok := PolicyFor(ActorContext{Role: RoleAdmin}).(AdminPolicy); !ok {
		t.Fatal("expected admin policy")
	}
	if _, ok := PolicyFor(ActorContext{Role: RoleUser}).(MemberPolicy); !ok {
		t.Fatal("expected member policy")
	}
}

func TestFilterContactsByProject(t *testing.T) {
	project := Project{ID: "p1", Visibility: VisibilityShared, Affiliations: Affiliations{"acme"}, CreatedBy: "u1"}
	contacts := []Contact{
		{ID: "a", Name: "acme person", Affiliations: Affiliations{"acme"}},
		{ID: "b", Name: "bolt person", Affiliations: Affiliations{"bolt"}},
		{ID: "c", Name: "both", Affiliations: Affiliations{"acme", "bolt"}},
		{ID: "d", Name: "no flags"},
		{ID: "e", Name: "vendor", IsVendor: true},
		{ID: "f", Name: "voided", Affiliations: Affiliations{"acme"}, Voided: true},
		{ID: "g", Name: "someone's private", IsPrivate: true, PrivateOwnerID: "u7"},
		{ID: "h", Name: "bolt vendor", Affiliations: Affiliations{"bolt"}, IsVendor: true},
	}

	member := memberActor("u1", "x", "acme")
	got := ids(FilterContactsByProject(contacts, project, member))
	// Vendors see every shared project but are assigned only by company flag.
	if want := "a,c"; got != want {
		t.Fatalf("member: got %s want %s", got, want)
	}

	admin := member
	admin.Role = RoleAdmin
	got = ids(FilterContactsByProject(contacts, project, admin))
	if want := "a,b,c,d,e,g,h"; got != want {
		t.Fatalf("admin: got %s want %s", got, want)
	}

	unscoped := Project{ID: "p2", Visibility: VisibilityShared, CreatedBy: "u1"}
	got = ids(FilterContactsByProject(contacts, unscoped, member))
	if want := "a,b,c,h"; got != want {
		t.Fatalf("unscoped: got %s want %s", got, want)
	}

	personal := Project{ID: "p3", Visibility: VisibilityPersonal, CreatedBy: "u7"}
	owner := memberActor("u7", "y")
	got = ids(FilterContactsByProject(contacts, personal, owner))
	if want := "a,b,c,e,g,h"; got != want {
		t.Fatalf("personal: got %s want %s", got, want)
	}
}

func TestFilterContactsHidesOthersPrivateContacts(t *testing.T) {
	contacts := []Contact{
		{ID: "a", Affiliations: Affiliations{"acme"}},
		{ID: "p", IsPrivate: true, PrivateOwnerID: "u1"},
	}
	if got := ids(FilterContacts(contacts, memberActor("u1", ""))); got != "a,p" {
		t.Fatalf("owner: got %s", got)
	}
	if got := ids(FilterContacts(contacts, memberActor("u2", ""))); got != "a" {
		t.Fatalf("other: got %s", got)
	}
	admin := memberActor("u2", "")
	admin.Role = RoleAdmin
	if got := ids(FilterContacts(contacts, admin)); got != "a,p" {
		t.Fatalf("admin: got %s", got)
	}
}

func TestVisibleTasks(t *testing.T) {
	projects := []Project{
		{ID: "mine", CreatedBy: "u1", Visibility: VisibilityPersonal},
		{ID: "shared", CreatedBy: "u2", Visibility: VisibilityShared},
	}
	contacts := []Contact{
		{ID: "c1", Affiliations: Affiliations{"acme"}},
		{ID: "c2", Affiliations: Affiliations{"acme"}, Voided: true},
		{ID: "c3", Affiliations: Affiliations{"acme"}, Voided: true},
	}
	tasks := []Task{
		{ID: "t1", ProjectID: "shared", OwnerIDs: []string{"c1"}},
		{ID: "t2", ProjectID: "shared", OwnerIDs: []string{"c9"}},
		{ID: "t3", ProjectID: "mine", OwnerIDs: []string{"c9"}},
		{ID: "t4", ProjectID: "shared", OwnerIDs: []string{"c1", "c2"}},
	}
	actor := memberActor("u1", "c1", "acme")
	if got := taskIDs(VisibleTasks(tasks, projects, contacts, actor)); got != "t1,t3,t4" {
		t.Fatalf("got %s", got)
	}

	// Every assignee voided hides the task even from those assignees.
	voidedActor := memberActor("u3", "c2", "acme")
	hidden := []Task{{ID: "t5", ProjectID: "shared", OwnerIDs: []string{"c2", "c3"}}}
	if got := taskIDs(VisibleTasks(hidden, projects, contacts, voidedActor)); got != "" {
		t.Fatalf("expected no visible tasks, got %s", got)
	}

	// Admin role does not widen the task list.
	admin := memberActor("u8", "c8")
	admin.Role = RoleAdmin
	if got := taskIDs(VisibleTasks(tasks, projects, contacts, admin)); got != "" {
		t.Fatalf("expected admin to see no tasks, got %s", got)
	}
}

func ids(contacts []Contact) string {
	out := ""
	for i, c := range contacts {
		if i > 0 {
			out += ","
		}
		out += c.ID
	}
	return out
}

func taskIDs(tasks []Task) string {
	out := ""
	for i, task := range tasks {
		if i > 0 {
			out += ","
		}
		out += task.ID
	}
	return out
}
