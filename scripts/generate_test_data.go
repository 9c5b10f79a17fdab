package main

import (
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/smallplates/internal/config"
	"github.com/smallplates/internal/db"
)

const (
	demoEmail = "demo-host@example.com"
	demoToken = "demo-collection"
)

type demoRecipe struct {
	first, last  string
	name         string
	ingredients  string
	instructions string
}

var demoRecipes = []demoRecipe{
	{"Ana", "Gomez", "Abuela's Flan", "4 eggs\n1 can condensed milk\n1 can evaporated milk\n1 cup sugar", "Caramelise the sugar.\nBlend the rest and pour over.\nBake in a water bath at 175C for 50 minutes."},
	{"Ana", "Gomez", "Green Rice", "2 cups rice\n2 poblanos\n1 bunch cilantro", "Blend the peppers with stock.\nFry the rice, add the sauce, simmer 20 minutes."},
	{"Tom", "Becker", "Sunday Roast Potatoes", "1kg potatoes\n4 tbsp duck fat\nrosemary", "Parboil 8 minutes, rough up, roast at 220C for 45 minutes."},
	{"Priya", "Nair", "Coconut Dal", "1 cup red lentils\n1 can coconut milk\n1 tsp turmeric", "Simmer the lentils until soft.\nStir in the coconut milk and temper with mustard seeds."},
	{"Lea", "", "Lemon Olive Oil Cake", "3 eggs\n200g sugar\n120ml olive oil\n2 lemons", "Whisk, fold in flour, bake at 180C for 40 minutes."},
}

// 演示数据生成器：一个开启收集链接的主办方、一个群组及其菜谱书、若干宾客与菜谱。
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("配置加载失败:", err)
	}
	if err := db.Init(cfg.Database); err != nil {
		log.Fatal("数据库初始化失败:", err)
	}

	fmt.Println("开始生成演示数据...")
	created, err := seedDemoData(db.DB)
	if err != nil {
		log.Fatal("演示数据生成失败:", err)
	}
	if created == 0 {
		fmt.Println("演示数据已存在，跳过创建")
		return
	}

	fmt.Println("演示数据生成完成！")
	fmt.Printf("收集链接: /api/v1/collection/%s\n", demoToken)
	fmt.Printf("菜谱: %d 道\n", created)
}

// seedDemoData returns the number of recipes created; zero when the demo
// host already exists.
func seedDemoData(gdb *gorm.DB) (int, error) {
	var existing db.Profile
	err := gdb.Where("email = ?", demoEmail).First(&existing).Error
	if err == nil {
		return 0, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, err
	}

	created := 0
	err = gdb.Transaction(func(tx *gorm.DB) error {
		name := "Maria & Joe"
		token := demoToken
		host := db.Profile{Email: demoEmail, FullName: &name, CollectionLinkToken: &token, CollectionEnabled: true}
		if err := tx.Create(&host).Error; err != nil {
			return err
		}

		group := db.Group{Name: "Maria & Joe's Wedding", CreatedBy: host.ID}
		if err := tx.Create(&group).Error; err != nil {
			return err
		}
		if err := tx.Create(&db.GroupMember{GroupID: group.ID, ProfileID: host.ID, Role: "owner"}).Error; err != nil {
			return err
		}
		groupID := group.ID
		cookbook := db.Cookbook{UserID: host.ID, GroupID: &groupID, Name: group.Name, IsGroupCookbook: true}
		if err := tx.Create(&cookbook).Error; err != nil {
			return err
		}

		guests := map[string]*db.Guest{}
		submitted := time.Now().Add(-time.Duration(len(demoRecipes)) * time.Hour)
		for i, r := range demoRecipes {
			key := r.first + " " + r.last
			guest, ok := guests[key]
			if !ok {
				guest = &db.Guest{
					UserID:          host.ID,
					GroupID:         &groupID,
					FirstName:       r.first,
					LastName:        r.last,
					Email:           fmt.Sprintf("NO_EMAIL_%d_demo%d", submitted.UnixMilli(), i),
					Status:          db.GuestStatusSubmitted,
					Source:          db.GuestSourceCollection,
					NumberOfRecipes: recipesBy(r.first, r.last),
				}
				if err := tx.Create(guest).Error; err != nil {
					return err
				}
				guests[key] = guest
			}

			at := submitted.Add(time.Duration(i) * time.Hour)
			recipe := db.Recipe{
				GuestID:          guest.ID,
				UserID:           host.ID,
				GroupID:          &groupID,
				RecipeName:       r.name,
				Ingredients:      r.ingredients,
				Instructions:     r.instructions,
				UploadMethod:     db.UploadMethodText,
				DocumentURLs:     []string{},
				SubmissionStatus: db.SubmissionStatusSubmitted,
				SubmittedAt:      &at,
			}
			if err := tx.Create(&recipe).Error; err != nil {
				return err
			}
			if err := tx.Create(&db.GroupRecipe{GroupID: group.ID, RecipeID: recipe.ID, AddedBy: host.ID}).Error; err != nil {
				return err
			}
			if err := tx.Create(&db.CookbookRecipe{CookbookID: cookbook.ID, RecipeID: recipe.ID, UserID: host.ID, DisplayOrder: i + 1}).Error; err != nil {
				return err
			}
			created++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return created, nil
}

func recipesBy(first, last string) int {
	n := 0
	for _, r := range demoRecipes {
		if r.first == first && r.last == last {
			n++
		}
	}
	return n
}
